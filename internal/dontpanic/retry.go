// Package dontpanic provides function wrappers and supervisors to ensure
// that wrapped code does not panic and cause unexpected crashes.
package dontpanic

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	"gitlab.com/audiopipe/httpsource/internal/log"
)

// Try will wrap the provided function with a panic recovery. If a panic
// occurs, the recovered panic will be sent to Sentry and logged as an
// error.
func Try(fn func()) { catchAndLog(fn) }

// Go will run the provided function in a goroutine and recover from any
// panics. Similar to Try, panics will be sent to Sentry and logged.
func Go(fn func()) { go catchAndLog(fn) }

// GoForever will keep retrying a function fn in a goroutine forever in
// the background, pausing between invocations by the specified recover
// interval.
func GoForever(recoverInterval time.Duration, fn func()) {
	go func() {
		for {
			catchAndLog(fn)
			time.Sleep(recoverInterval)
		}
	}()
}

func catchAndLog(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		sentry.CurrentHub().Recover(r)
		log.Default().Errorf("recovered from panic: %v", r)
	}()

	fn()
}
