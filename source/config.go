package source

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the library's timing and retry defaults. Zero fields of
// Options fall back to these, so deployments can retune the library from
// the environment without touching call sites.
type Config struct {
	// HTTPSOURCE_READ_WAIT
	ReadWait time.Duration `split_words:"true" default:"500ms"`
	// HTTPSOURCE_WAIT_TICK
	WaitTick time.Duration `split_words:"true" default:"50ms"`
	// HTTPSOURCE_SIZE_LINE_WAIT
	SizeLineWait time.Duration `split_words:"true" default:"1500ms"`
	// HTTPSOURCE_RECONNECT_ATTEMPTS
	ReconnectAttempts int `split_words:"true" default:"0"`
	// HTTPSOURCE_RECONNECT_DELAY
	ReconnectDelay time.Duration `split_words:"true" default:"1s"`
}

var config Config

func init() {
	envconfig.MustProcess("httpsource", &config)
}
