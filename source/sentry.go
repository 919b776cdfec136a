package source

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"

	sentry "github.com/getsentry/sentry-go"
)

var errorMsgPattern = regexp.MustCompile(`\A(\w+): (.+)\z`)

// newException constructs an Exception using provided Error and Stacktrace
func newException(err error, stacktrace *sentry.Stacktrace) sentry.Exception {
	msg := err.Error()
	ex := sentry.Exception{
		Stacktrace: stacktrace,
		Value:      msg,
		Type:       reflect.TypeOf(err).String(),
	}
	if m := errorMsgPattern.FindStringSubmatch(msg); m != nil {
		ex.Module, ex.Value = m[1], m[2]
	}
	return ex
}

// scrubLocator drops userinfo credentials before a locator leaves the
// process as an error report tag.
func scrubLocator(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.User == nil {
		return locator
	}

	u.User = nil
	return u.String()
}

// captureOpenFailure reports a failed open. Without a configured DSN
// CaptureEvent is a no-op, so callers need no guard.
func captureOpenFailure(locator string, err error) {
	event := sentry.NewEvent()
	event.Message = err.Error()
	event.Tags["httpsource.locator"] = scrubLocator(locator)

	// Skip the stacktrace as it's not helpful in this context
	event.Exception = append(event.Exception, newException(err, nil))

	event.Fingerprint = []string{"httpsource", "open_failed"}
	event.Transaction = "source.Open"

	sentry.CaptureEvent(event)
}

// captureReconnectExhausted reports a session lost to a spent reconnect
// budget.
func captureReconnectExhausted(locator string, attempts int) {
	event := sentry.NewEvent()
	event.Message = fmt.Sprintf("stream reconnect exhausted after %d attempts", attempts)
	event.Tags["httpsource.locator"] = scrubLocator(locator)
	event.Tags["httpsource.attempts"] = strconv.Itoa(attempts)

	event.Fingerprint = []string{"httpsource", "reconnect_exhausted"}
	event.Transaction = "source.Read"

	sentry.CaptureEvent(event)
}
