package logsanitizer

import (
	"regexp"

	"github.com/sirupsen/logrus"
)

// Pattern taken from Regular Expressions Cookbook, slightly modified though
//                                        |Scheme                 |User                         |Named/IPv4 host|IPv6+ host
var hostPattern = regexp.MustCompile(`(?i)([a-z][a-z0-9+\-.]*://)([a-z0-9\-._~%!$&'()*+,;=:]+@)([a-z0-9\-._~%]+|\[[a-z0-9\-._~%!$&'()*+,;=:]+\])`)

// URLSanitizerHook stores which log fields to perform sanitization for.
// Stream locators may carry basic-auth userinfo and must never reach the
// logs verbatim.
type URLSanitizerHook struct {
	// log fields that are likely to have URLs to sanitize
	possibleURLFields map[string]bool
}

// NewURLSanitizerHook returns a new logrus hook for sanitizing URLs.
func NewURLSanitizerHook() *URLSanitizerHook {
	return &URLSanitizerHook{possibleURLFields: make(map[string]bool)}
}

// AddPossibleURLField adds field names that we should sanitize URLs from
// in log entries.
func (hook *URLSanitizerHook) AddPossibleURLField(fields ...string) {
	for _, field := range fields {
		hook.possibleURLFields[field] = true
	}
}

// Fire is called by logrus.
func (hook *URLSanitizerHook) Fire(entry *logrus.Entry) error {
	sanitize := false
	for field := range hook.possibleURLFields {
		switch val := entry.Data[field].(type) {
		case string:
			entry.Data[field] = sanitizeString(val)
			sanitize = true
		case error:
			entry.Data[field] = sanitizeString(val.Error())
			sanitize = true
		}
	}

	if !sanitize {
		return nil
	}

	if err, ok := entry.Data["error"].(error); ok {
		entry.Data["error"] = sanitizeString(err.Error())
	}
	entry.Message = sanitizeString(entry.Message)

	return nil
}

// Levels is called by logrus.
func (hook *URLSanitizerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func sanitizeString(str string) string {
	return hostPattern.ReplaceAllString(str, "$1[FILTERED]@$3")
}
