package derive

import (
	"errors"
	"fmt"
)

// Level categorizes the severity of a derivation error.
// Stage-local decode and validation failures are absorbed where they occur and
// never surface through the pipeline as one of these; everything that does
// escape a stage carries a level so the caller knows whether to retry, reset,
// or abort.
type Level uint

// There are three levels currently, out of which only 2 signal any action to take.
const (
	// LevelTemporary is a temporary error for example due to an RPC or
	// connection issue, and can be safely ignored and retried by the caller
	LevelTemporary Level = iota
	// LevelReset is a pipeline reset error. It must be treated like a reorg.
	LevelReset
	// LevelCritical is a critical error.
	LevelCritical
)

func (lvl Level) String() string {
	switch lvl {
	case LevelTemporary:
		return "temp"
	case LevelReset:
		return "reset"
	case LevelCritical:
		return "crit"
	default:
		return fmt.Sprintf("unknown(%d)", lvl)
	}
}

// Error is a derivation error, with a severity level to determine the handling.
type Error struct {
	err   error
	level Level
}

func (e Error) Error() string {
	msg := "derivation error"
	if e.err != nil {
		msg = e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.level, msg)
}

func (e Error) Unwrap() error {
	return e.err
}

// Is checks if the error is the given target type.
// Any other Error type of the same level is a match.
func (e Error) Is(target error) bool {
	if errors.Is(e.err, target) {
		return true
	}
	derr, ok := target.(Error)
	return ok && derr.level == e.level
}

func NewError(err error, level Level) error {
	return Error{err: err, level: level}
}

// NewTemporaryError returns a derivation error that may resolve itself by retrying.
func NewTemporaryError(err error) error {
	return NewError(err, LevelTemporary)
}

// NewResetError returns a derivation error that requires a full pipeline reset,
// e.g. after detecting an L1 reorg.
func NewResetError(err error) error {
	return NewError(err, LevelReset)
}

// NewCriticalError returns a derivation error that the pipeline cannot recover from.
func NewCriticalError(err error) error {
	return NewError(err, LevelCritical)
}

// Sentinel errors, use these to get the severity of errors by calling
// errors.Is(err, ErrTemporary) for example.
var (
	ErrTemporary = NewTemporaryError(nil)
	ErrReset     = NewResetError(nil)
	ErrCritical  = NewCriticalError(nil)
)

// NotEnoughData implies that the function currently does not have enough data
// to progress, but attempting it later may succeed without needing more L1 data.
// The caller must not consume anything from its upstream when seeing this.
var NotEnoughData = errors.New("not enough data")

// ErrEndOfData signals that the traversal stage has processed all L1 data up to
// and including the configured L1 head; no further data will ever arrive.
// This is distinct from io.EOF, which only means a stage is drained until the
// current origin advances.
var ErrEndOfData = errors.New("end of L1 data")

