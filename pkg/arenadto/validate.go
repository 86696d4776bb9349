package arenadto

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags on any frame or payload.
func Validate(v any) error {
	return validatorInstance().Struct(v)
}

// DecodeEnvelope parses and validates an inbound frame.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if err := Validate(&env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return &env, nil
}

// DecodePayload unmarshals env.Data into dst and validates it. An absent payload
// decodes as the zero value.
func DecodePayload(env *Envelope, dst any) error {
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	if err := Validate(dst); err != nil {
		return fmt.Errorf("invalid %s: %w", env.Type, err)
	}
	return nil
}
