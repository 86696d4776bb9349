package session

import (
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-arena/internal/board"
	"github.com/park285/cheese-arena/internal/clock"
)

var (
	alice = Player{ID: "p-alice", Name: "alice"}
	bob   = Player{ID: "p-bob", Name: "bob"}
)

type fakeTime struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type recordingEvents struct {
	mu      sync.Mutex
	ticks   int
	expired chan Result
}

func newRecordingEvents() *recordingEvents { return &recordingEvents{expired: make(chan Result, 4)} }

func (e *recordingEvents) Tick(string, time.Duration, time.Duration) {
	e.mu.Lock()
	e.ticks++
	e.mu.Unlock()
}

func (e *recordingEvents) Expired(_ string, res Result) { e.expired <- res }

func newStarted(t *testing.T, tc clock.TimeControl, opts ...Option) *Session {
	t.Helper()
	s := New("g-test", tc, alice, opts...)
	if err := s.Join(bob); err != nil {
		t.Fatalf("Join: %v", err)
	}
	t.Cleanup(func() { s.ForceEnd(nil, CauseDisconnect) })
	return s
}

func uciSquares(t *testing.T, mv string) (board.Square, board.Square, board.Kind) {
	t.Helper()
	from, ok1 := board.ParseSquare(mv[:2])
	to, ok2 := board.ParseSquare(mv[2:4])
	if !ok1 || !ok2 {
		t.Fatalf("bad move %q", mv)
	}
	promo := board.None
	if len(mv) == 5 {
		promo, _ = board.ParseKind(mv[4:])
	}
	return from, to, promo
}

// play submits alternating moves starting with white and returns the last result.
func play(t *testing.T, s *Session, moves ...string) Result {
	t.Helper()
	var res Result
	for i, mv := range moves {
		player := alice.ID
		if i%2 == 1 {
			player = bob.ID
		}
		from, to, promo := uciSquares(t, mv)
		res = s.SubmitMove(player, from, to, promo)
		if !res.Accepted {
			t.Fatalf("move %d %s rejected: %s", i+1, mv, res.Reason)
		}
	}
	return res
}

func TestSession_FoolsMate(t *testing.T) {
	s := newStarted(t, clock.Blitz5)
	res := play(t, s, "f2f3", "e7e5", "g2g4", "d8h4")

	if res.Terminal == nil || res.Terminal.Cause != CauseCheckmate || res.Terminal.WinnerName() != "black" {
		t.Fatalf("terminal = %+v; want black checkmate", res.Terminal)
	}
	if !res.Check {
		t.Fatalf("mating move must report check")
	}
	if res.Board[4][7] != "q" || res.Turn != board.White {
		t.Fatalf("board/turn not updated: h4=%q turn=%s", res.Board[4][7], res.Turn)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s; want completed", s.State())
	}

	after := s.SubmitMove(alice.ID, board.Sq(6, 4), board.Sq(4, 4), board.None)
	if after.Accepted || after.Reason != ReasonGameOver || after.Terminal == nil {
		t.Fatalf("move after mate = %+v; want game-over", after)
	}
	if n := len(s.History()); n != 4 {
		t.Fatalf("history = %d; want 4", n)
	}
}

func TestSession_LoydStalemate(t *testing.T) {
	moves := []string{
		"e2e3", "a7a5", "d1h5", "a8a6", "h5a5", "h7h5", "h2h4", "a6h6", "a5c7", "f7f6",
		"c7d7", "e8f7", "d7b7", "d8d3", "b7b8", "d3h7", "b8c8", "f7g6", "c8e6",
	}
	s := newStarted(t, clock.Blitz5)
	res := play(t, s, moves...)

	if res.Terminal == nil || res.Terminal.Cause != CauseStalemate || res.Terminal.Winner != nil {
		t.Fatalf("terminal = %+v; want stalemate without winner", res.Terminal)
	}
	if res.Check {
		t.Fatalf("stalemate reported check")
	}

	oracle := nchess.NewGame()
	for _, mv := range moves {
		if err := oracle.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("oracle rejected %s: %v", mv, err)
		}
	}
	if oracle.Outcome() != nchess.Draw || oracle.Method() != nchess.Stalemate {
		t.Fatalf("oracle outcome = %v/%v; want stalemate draw", oracle.Outcome(), oracle.Method())
	}
}

func TestSession_Rejections(t *testing.T) {
	waiting := New("g-wait", clock.Blitz5, alice)
	if res := waiting.SubmitMove(alice.ID, board.Sq(6, 4), board.Sq(4, 4), board.None); res.Reason != ReasonNotStarted {
		t.Fatalf("awaiting session reason = %q; want not-started", res.Reason)
	}

	s := newStarted(t, clock.Blitz5)
	tests := []struct {
		name     string
		player   string
		from, to board.Square
		want     Reason
	}{
		{"black moves first", bob.ID, board.Sq(1, 4), board.Sq(3, 4), ReasonNotYourTurn},
		{"stranger", "p-eve", board.Sq(6, 4), board.Sq(4, 4), ReasonNotYourTurn},
		{"empty source", alice.ID, board.Sq(4, 4), board.Sq(3, 4), ReasonNoPiece},
		{"enemy piece", alice.ID, board.Sq(1, 4), board.Sq(2, 4), ReasonNotYourPiece},
		{"bad pattern", alice.ID, board.Sq(7, 1), board.Sq(5, 1), ReasonPatternInvalid},
		{"own piece", alice.ID, board.Sq(7, 0), board.Sq(6, 0), ReasonFriendlyFire},
		{"same square", alice.ID, board.Sq(6, 0), board.Sq(6, 0), ReasonSameSquare},
		{"off board", alice.ID, board.Sq(6, 0), board.Sq(6, -1), ReasonOffBoard},
	}
	for _, tt := range tests {
		res := s.SubmitMove(tt.player, tt.from, tt.to, board.None)
		if res.Accepted || res.Reason != tt.want {
			t.Errorf("%s: got %+v; want %q", tt.name, res, tt.want)
		}
	}
	if snap := s.Snapshot(); snap.Moves != 0 || snap.Turn != board.White {
		t.Fatalf("rejections mutated state: %+v", snap)
	}
}

func TestSession_ClockTimeoutWithoutMoves(t *testing.T) {
	ev := newRecordingEvents()
	s := newStarted(t, clock.TimeControl{Base: 60 * time.Millisecond},
		WithEvents(ev), WithClock(clock.WithTick(5*time.Millisecond)))

	select {
	case res := <-ev.expired:
		if res.Terminal == nil || res.Terminal.Cause != CauseTimeout || res.Terminal.WinnerName() != "black" {
			t.Fatalf("terminal = %+v; want black on time", res.Terminal)
		}
		if res.WhiteTime != 0 {
			t.Fatalf("white time = %s; want 0", res.WhiteTime)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session never timed out")
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s; want completed", s.State())
	}
	if _, ended := s.ForceEnd(Win(board.White), CauseResignation); ended {
		t.Fatalf("ForceEnd after timeout changed the outcome")
	}
	if got := s.Terminal(); got.Cause != CauseTimeout {
		t.Fatalf("terminal overwritten: %+v", got)
	}
}

func TestSession_MoveAfterFlagEndsOnTime(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1_700_000_000, 0)}
	s := newStarted(t, clock.TimeControl{Base: time.Second},
		WithClock(clock.WithNow(ft.Now), clock.WithTick(time.Hour)))

	play(t, s, "e2e4")
	ft.Advance(3 * time.Second)

	res := s.SubmitMove(bob.ID, board.Sq(1, 4), board.Sq(3, 4), board.None)
	if res.Accepted || res.Reason != ReasonGameOver {
		t.Fatalf("late move = %+v; want game-over", res)
	}
	if res.Terminal == nil || res.Terminal.Cause != CauseTimeout || res.Terminal.WinnerName() != "white" {
		t.Fatalf("terminal = %+v; want white on time", res.Terminal)
	}
	if n := len(s.History()); n != 1 {
		t.Fatalf("late move recorded: history=%d", n)
	}
}

func TestSession_ForceEndIdempotent(t *testing.T) {
	calls := 0
	s := newStarted(t, clock.Blitz5, withFinishHook(func(*Session) { calls++ }))

	res, ended := s.ForceEnd(Win(board.Black), CauseResignation)
	if !ended || res.Terminal == nil || res.Terminal.WinnerName() != "black" {
		t.Fatalf("first ForceEnd = %+v,%v", res.Terminal, ended)
	}
	res, ended = s.ForceEnd(nil, CauseDisconnect)
	if ended || res.Terminal.Cause != CauseResignation {
		t.Fatalf("second ForceEnd = %+v,%v; want unchanged resignation", res.Terminal, ended)
	}
	if calls != 1 {
		t.Fatalf("finish hook ran %d times; want 1", calls)
	}
}

func TestSession_IncrementAndHistory(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1_700_000_000, 0)}
	s := newStarted(t, clock.FromMinutes(1, 5),
		WithClock(clock.WithNow(ft.Now), clock.WithTick(time.Hour)))

	ft.Advance(2 * time.Second)
	res := play(t, s, "e2e4")
	if res.WhiteTime != 63*time.Second || res.BlackTime != time.Minute {
		t.Fatalf("times = %s/%s; want 63s/1m", res.WhiteTime, res.BlackTime)
	}
	if res.Turn != board.Black || res.Move == nil || res.Move.Coord() != "e2e4" {
		t.Fatalf("result = %+v", res)
	}

	if r := s.SubmitMove(bob.ID, board.Sq(0, 6), board.Sq(2, 5), board.None); !r.Accepted {
		t.Fatalf("g8f6 rejected: %s", r.Reason)
	}
	h := s.History()
	if len(h) != 2 || h[1].Ply != 2 {
		t.Fatalf("history = %+v", h)
	}
}

func TestSession_JoinRules(t *testing.T) {
	s := New("g-join", clock.Blitz5, alice)
	t.Cleanup(func() { s.ForceEnd(nil, CauseDisconnect) })
	if err := s.Join(alice); err != ErrAlreadySeated {
		t.Fatalf("self join err = %v; want ErrAlreadySeated", err)
	}
	if err := s.Join(Player{}); err != ErrInvalidArgs {
		t.Fatalf("anonymous join err = %v; want ErrInvalidArgs", err)
	}
	if err := s.Join(bob); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := s.Join(Player{ID: "p-eve"}); err != ErrSessionFull {
		t.Fatalf("third join err = %v; want ErrSessionFull", err)
	}
	if c, ok := s.ColorOf(bob.ID); !ok || c != board.Black {
		t.Fatalf("bob seated as %s,%v", c, ok)
	}
}
