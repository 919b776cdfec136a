package helper

import (
	"time"
)

// Ticker ticks on the channel returned by C to signal something.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset()
}

// NewTimerTicker returns a Ticker that ticks after the given interval
// has elapsed. The ticker is inactive until Reset is called for the
// first time.
func NewTimerTicker(interval time.Duration) Ticker {
	return &timerTicker{interval: interval}
}

type timerTicker struct {
	timer    *time.Timer
	interval time.Duration
}

func (tt *timerTicker) ensureTimer() *time.Timer {
	if tt.timer == nil {
		timer := time.NewTimer(tt.interval)
		if !timer.Stop() {
			<-timer.C
		}
		tt.timer = timer
	}

	return tt.timer
}

func (tt *timerTicker) C() <-chan time.Time { return tt.ensureTimer().C }

func (tt *timerTicker) Reset() { tt.ensureTimer().Reset(tt.interval) }

func (tt *timerTicker) Stop() { tt.ensureTimer().Stop() }

// NewManualTicker returns a Ticker that only ticks when Tick is called.
// Useful to remove wall-clock delays from tests.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time, 1)}
}

// ManualTicker implements a Ticker whose ticks are triggered by the
// caller. The Stop and Reset hooks are invoked from the corresponding
// Ticker methods when set.
type ManualTicker struct {
	c         chan time.Time
	StopFunc  func()
	ResetFunc func()
}

func (mt *ManualTicker) C() <-chan time.Time { return mt.c }

func (mt *ManualTicker) Stop() {
	if mt.StopFunc != nil {
		mt.StopFunc()
	}
}

func (mt *ManualTicker) Reset() {
	if mt.ResetFunc != nil {
		mt.ResetFunc()
	}
}

// Tick makes a tick available on the channel returned by C. It must not
// be called again before the previous tick was consumed.
func (mt *ManualTicker) Tick() { mt.c <- time.Now() }
