// Package reconnect implements the bounded retry policy that reopens a
// dropped stream with its original locator.
package reconnect

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/audiopipe/httpsource/internal/helper"
	"gitlab.com/audiopipe/httpsource/internal/log"
)

// ErrExhausted means every configured attempt failed, or reconnection
// was disabled outright.
var ErrExhausted = errors.New("reconnect attempts exhausted")

// Policy paces bounded reopen attempts with a fixed delay between them.
// A zero MaxAttempts disables reconnection, which was the default of the
// stream sources this library replaces.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// NewTicker builds the ticker that paces attempts. Defaults to a
	// wall-clock timer; tests inject manual tickers.
	NewTicker func(time.Duration) helper.Ticker

	// OnAttempt, when set, is told about each attempt before its delay
	// starts.
	OnAttempt func(attempt int)

	Logger *logrus.Entry
}

// Run invokes reopen until one attempt succeeds or the budget is spent.
// Each attempt waits the fixed delay first, so the caller blocks for at
// most MaxAttempts times Delay plus the reopen costs.
func (p Policy) Run(reopen func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrExhausted
	}

	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	newTicker := p.NewTicker
	if newTicker == nil {
		newTicker = helper.NewTimerTicker
	}

	ticker := newTicker(p.Delay)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		countAttempt()
		if p.OnAttempt != nil {
			p.OnAttempt(attempt)
		}

		ticker.Reset()
		<-ticker.C()

		err := reopen()
		if err == nil {
			return nil
		}

		logger.WithError(err).WithField("attempt", attempt).Warn("stream reopen failed")
	}

	countExhausted()
	return ErrExhausted
}
