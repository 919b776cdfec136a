package main

import (
	"fmt"
	"os"
	"strconv"
)

const (
	usage = `Usage: httpsource-debug SUBCOMMAND ARGS

Subcommands:

analyze-stream STREAM_URL
	Fetches a stream from a public HTTP URL and prints timing and
	framing metrics for the exchange and the body drain. The payload
	is discarded.

tail-stream STREAM_URL [BYTES_PER_SECOND]
	Opens a stream from a public HTTP URL and copies its payload to
	stdout until the stream ends. The optional rate limit simulates a
	decoder that consumes the stream in real time.
`
)

func main() {
	if len(os.Args) < 2 {
		fatal(usage)
	}
	extraArgs := os.Args[2:]

	switch os.Args[1] {
	case "analyze-stream":
		if len(extraArgs) != 1 {
			fatal(usage)
		}
		analyzeStream(extraArgs[0])
	case "tail-stream":
		if len(extraArgs) < 1 || len(extraArgs) > 2 {
			fatal(usage)
		}
		byteRate := int64(0)
		if len(extraArgs) == 2 {
			var err error
			byteRate, err = strconv.ParseInt(extraArgs[1], 10, 64)
			noError(err)
		}
		tailStream(extraArgs[0], byteRate)
	default:
		fatal(usage)
	}
}

func noError(err error) {
	if err != nil {
		fatal(err)
	}
}

func fatal(a interface{}) {
	msg("%v", a)
	os.Exit(1)
}

func msg(format string, a ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, a...))
}

func humanBytes(n int64) string {
	units := []struct {
		size  int64
		label string
	}{
		{size: 1000000000000, label: "TB"},
		{size: 1000000000, label: "GB"},
		{size: 1000000, label: "MB"},
		{size: 1000, label: "KB"},
	}

	for _, u := range units {
		if n > u.size {
			return fmt.Sprintf("%.2f %s", float32(n)/float32(u.size), u.label)
		}
	}

	return fmt.Sprintf("%d bytes", n)
}
