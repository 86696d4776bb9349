package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeControl is returned for unparsable or out-of-range controls.
var ErrInvalidTimeControl = errors.New("invalid time control")

const (
	MaxBase      = 180 * time.Minute
	MaxIncrement = 60 * time.Second
)

// TimeControl is the starting time per side plus the per-move increment.
type TimeControl struct {
	Base      time.Duration `json:"base"`
	Increment time.Duration `json:"increment"`
}

// Blitz5 is the default control: five minutes, no increment.
var Blitz5 = TimeControl{Base: 5 * time.Minute}

// FromMinutes builds a control from whole minutes and seconds of increment.
func FromMinutes(minutes, incrementSec int) TimeControl {
	return TimeControl{
		Base:      time.Duration(minutes) * time.Minute,
		Increment: time.Duration(incrementSec) * time.Second,
	}
}

// Validate checks the control against the accepted ranges.
func (tc TimeControl) Validate() error {
	if tc.Base <= 0 || tc.Base > MaxBase {
		return fmt.Errorf("%w: base %s", ErrInvalidTimeControl, tc.Base)
	}
	if tc.Increment < 0 || tc.Increment > MaxIncrement {
		return fmt.Errorf("%w: increment %s", ErrInvalidTimeControl, tc.Increment)
	}
	return nil
}

// String renders the "minutes+seconds" form.
func (tc TimeControl) String() string {
	minutes := tc.Base.Minutes()
	inc := int(tc.Increment / time.Second)
	if minutes == float64(int(minutes)) {
		return fmt.Sprintf("%d+%d", int(minutes), inc)
	}
	return fmt.Sprintf("%g+%d", minutes, inc)
}

// ParseTimeControl reads "5+3" (minutes, then increment seconds). A bare "5" means
// no increment; "|" is accepted in place of "+".
func ParseTimeControl(s string) (TimeControl, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "|", "+"))
	if s == "" {
		return TimeControl{}, fmt.Errorf("%w: empty", ErrInvalidTimeControl)
	}
	base, inc, _ := strings.Cut(s, "+")
	minutes, err := strconv.ParseFloat(strings.TrimSpace(base), 64)
	if err != nil {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, s)
	}
	tc := TimeControl{Base: time.Duration(minutes * float64(time.Minute))}
	if inc = strings.TrimSpace(inc); inc != "" {
		sec, err := strconv.Atoi(inc)
		if err != nil {
			return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, s)
		}
		tc.Increment = time.Duration(sec) * time.Second
	}
	if err := tc.Validate(); err != nil {
		return TimeControl{}, err
	}
	return tc, nil
}
