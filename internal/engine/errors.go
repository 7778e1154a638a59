package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	InvalidConfigErr    = errors.New("invalid backtest config")
	InsufficientDataErr = errors.New("no snapshots for the configured window")
	UnknownSideErr      = errors.New("unknown fill side")
)

// StrategyError wraps an error returned by a strategy during signal
// generation. It aborts the whole run rather than skipping the bad
// timestep, so a buggy strategy never silently corrupts comparative
// results.
type StrategyError struct {
	Strategy string
	Time     time.Time
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s failed at %s: %v", e.Strategy, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}
