// Package stats measures live stream fetches for diagnostics: the
// request/response exchange and a bounded drain of the body through the
// same read path production consumers use.
package stats

import (
	"context"
	"fmt"
	"io"
	"time"

	"gitlab.com/audiopipe/httpsource/internal/negotiate"
	"gitlab.com/audiopipe/httpsource/source"
)

// defaultByteLimit bounds the body drain when the caller does not:
// enough payload for throughput to stabilize, small enough to keep the
// probe quick on an unbounded live stream.
const defaultByteLimit = 512 * 1024

// maxZeroReads stops the drain after this many consecutive empty reads.
const maxZeroReads = 3

// Fetch probes one stream URL, discarding the drained payload.
type Fetch struct {
	URL         string
	Interactive bool

	// ByteLimit stops the drain once at least this many payload bytes
	// arrived. Zero means defaultByteLimit.
	ByteLimit int64

	// ReconnectAttempts gives the drain a reconnect budget so a flaky
	// stream exercises the production recovery path. Zero disables
	// reconnection: a probe normally ends when the peer does.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	client *negotiate.Client
	result *negotiate.Result

	Exchange
	Body
}

// Perform runs the exchange and the body drain.
func (f *Fetch) Perform(ctx context.Context) error {
	if err := f.doExchange(ctx); err != nil {
		return ctxErr(ctx, err)
	}

	if err := f.doBody(ctx); err != nil {
		return ctxErr(ctx, err)
	}

	return nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Exchange holds request/response negotiation measurements.
type Exchange struct {
	start          time.Time
	responseHeader time.Duration
	httpStatus     int
	chunked        bool
	encoding       string
	finalURL       string
	declaredSize   int64
}

func (e *Exchange) ResponseHeader() time.Duration { return e.responseHeader }
func (e *Exchange) HTTPStatus() int               { return e.httpStatus }
func (e *Exchange) Chunked() bool                 { return e.chunked }
func (e *Exchange) Encoding() string              { return e.encoding }
func (e *Exchange) FinalURL() string              { return e.finalURL }
func (e *Exchange) DeclaredSize() int64           { return e.declaredSize }

// Body holds drain measurements taken through the stream reader.
type Body struct {
	start     time.Time
	firstByte time.Duration
	elapsed   time.Duration
	bytes     int64
	reads     int
	zeroReads int
	eof       bool
	events    map[source.EventType]int
}

func (b *Body) FirstByte() time.Duration { return b.firstByte }
func (b *Body) Elapsed() time.Duration   { return b.elapsed }
func (b *Body) Bytes() int64             { return b.bytes }
func (b *Body) Reads() int               { return b.reads }
func (b *Body) ZeroReads() int           { return b.zeroReads }
func (b *Body) EOF() bool                { return b.eof }

// Events returns the tally of diagnostic events observed during the
// drain, keyed by event name.
func (b *Body) Events() map[string]int {
	tally := make(map[string]int, len(b.events))
	for t, n := range b.events {
		tally[t.String()] = n
	}
	return tally
}

// Reconnects returns the number of reopen attempts observed.
func (b *Body) Reconnects() int { return b.events[source.EventReconnectAttempt] }

// CorruptFrames returns the number of chunk framing violations observed.
func (b *Body) CorruptFrames() int { return b.events[source.EventBadFrame] }

// ThroughputBPS returns the drain rate in bytes per second.
func (b *Body) ThroughputBPS() float64 {
	if b.elapsed <= 0 {
		return 0
	}
	return float64(b.bytes) / b.elapsed.Seconds()
}

func (f *Fetch) doExchange(ctx context.Context) error {
	client, err := negotiate.New(negotiate.Options{UserAgent: "httpsource-debug"})
	if err != nil {
		return err
	}

	f.Exchange.start = time.Now()
	f.printInteractive("---")
	f.printInteractive("--- GET %v", f.URL)
	f.printInteractive("---")

	res, err := client.Negotiate(f.URL)
	if err != nil {
		return err
	}

	f.Exchange.responseHeader = time.Since(f.Exchange.start)
	f.Exchange.httpStatus = res.Status
	f.Exchange.chunked = res.Chunked
	f.Exchange.encoding = res.Encoding
	f.Exchange.finalURL = res.FinalURL
	f.Exchange.declaredSize = res.Size
	f.client = client
	f.result = res

	f.printInteractive("response code: %d", res.Status)
	f.printInteractive("chunked: %v", res.Chunked)
	f.printInteractive("declared size: %d", res.Size)

	return nil
}

func (f *Fetch) doBody(ctx context.Context) error {
	f.Body.events = make(map[source.EventType]int)

	attempts := f.ReconnectAttempts
	if attempts <= 0 {
		attempts = -1
	}

	src := source.New(source.Options{
		Negotiator:        &probeNegotiator{client: f.client, res: f.result},
		ReconnectAttempts: attempts,
		ReconnectDelay:    f.ReconnectDelay,
		Observer:          func(e source.Event) { f.Body.events[e.Type]++ },
	})

	if err := src.Open(f.URL); err != nil {
		return err
	}
	defer src.Close()

	limit := f.ByteLimit
	if limit <= 0 {
		limit = defaultByteLimit
	}

	f.Body.start = time.Now()
	buf := make([]byte, 32*1024)
	consecutiveZero := 0

	for f.Body.bytes < limit && consecutiveZero < maxZeroReads {
		n, err := src.Read(buf)
		f.Body.reads++

		if err == io.EOF {
			f.Body.eof = true
			break
		}

		if n == 0 {
			consecutiveZero++
			f.Body.zeroReads++
			continue
		}
		consecutiveZero = 0

		if f.Body.bytes == 0 {
			f.Body.firstByte = time.Since(f.Body.start)
		}
		f.Body.bytes += int64(n)
	}

	f.Body.elapsed = time.Since(f.Body.start)

	f.printInteractive("payload bytes: %d", f.Body.bytes)
	f.printInteractive("read calls: %d", f.Body.reads)
	for name, count := range f.Body.Events() {
		f.printInteractive("event %s: %d", name, count)
	}

	return nil
}

// probeNegotiator hands the probe's already-measured exchange to the
// reader first; reconnects fall through to a fresh negotiation.
type probeNegotiator struct {
	client *negotiate.Client
	res    *negotiate.Result
}

func (pn *probeNegotiator) Negotiate(locator string) (*negotiate.Result, error) {
	if pn.res != nil {
		res := pn.res
		pn.res = nil
		return res, nil
	}

	return pn.client.Negotiate(locator)
}

func (f *Fetch) printInteractive(format string, a ...interface{}) error {
	if !f.Interactive {
		return nil
	}

	if _, err := fmt.Println(fmt.Sprintf(format, a...)); err != nil {
		return err
	}

	return nil
}
