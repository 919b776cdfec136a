// Package source exposes a live HTTP resource as a pull-style byte
// stream for incremental consumers such as audio decoders. It hides
// chunked transfer-encoding framing, masks transient disconnects behind
// a bounded reconnect policy, and offers both blocking and non-blocking
// reads with uniform semantics.
//
// A Source belongs to one goroutine; concurrent calls are undefined.
package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gitlab.com/audiopipe/httpsource/internal/dontpanic"
	"gitlab.com/audiopipe/httpsource/internal/framing"
	"gitlab.com/audiopipe/httpsource/internal/helper"
	"gitlab.com/audiopipe/httpsource/internal/log"
	"gitlab.com/audiopipe/httpsource/internal/negotiate"
	"gitlab.com/audiopipe/httpsource/internal/reconnect"
	"gitlab.com/audiopipe/httpsource/internal/transport"
)

// ErrSeekNotSupported is returned by Seek: a live stream holds no prior
// bytes and cannot restart from an offset.
var ErrSeekNotSupported = errors.New("seeking is not supported on a live stream")

// Negotiator performs the HTTP request/response exchange for a locator.
// The production implementation is negotiate.Client.
type Negotiator interface {
	Negotiate(locator string) (*negotiate.Result, error)
}

// Options configures a Source. Zero fields fall back to the package
// Config defaults, which the environment can override.
type Options struct {
	// Negotiator performs the request/response exchange. Defaults to a
	// negotiate.Client with default options.
	Negotiator Negotiator

	// ReadWait bounds how long a blocking read waits for the requested
	// bytes to become available, polling every WaitTick.
	ReadWait time.Duration
	WaitTick time.Duration

	// SizeLineWait bounds how long the chunk decoder waits for frame
	// structure bytes (delimiters and size lines).
	SizeLineWait time.Duration

	// ReconnectAttempts bounds the reopen attempts after a disconnect,
	// ReconnectDelay spaces them. Zero attempts falls back to the
	// environment default; a negative count disables reconnection
	// outright.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// NewTicker paces availability waits and reconnect delays. Defaults
	// to a wall-clock timer; tests inject manual tickers.
	NewTicker func(time.Duration) helper.Ticker

	// Observer, when set, is told about notable session transitions.
	// It is advisory only and never affects control flow; panics inside
	// it are contained.
	Observer func(Event)

	Logger *logrus.Entry
}

// session is the state bound to one successfully negotiated exchange.
// The framing mode is fixed for its lifetime; it is re-evaluated only
// by the next open.
type session struct {
	id        string
	transport transport.Transport
	chunked   bool
	decoder   *framing.Decoder
	logger    *logrus.Entry
}

// Source is the stream reader facade. The zero value is not usable;
// construct with New.
type Source struct {
	opts   Options
	logger *logrus.Entry

	locator string
	session *session
	size    int64
	pos     int64
	eof     bool
}

// New returns an unopened Source.
func New(opts Options) *Source {
	if opts.ReadWait == 0 {
		opts.ReadWait = config.ReadWait
	}
	if opts.WaitTick <= 0 {
		opts.WaitTick = config.WaitTick
	}
	if opts.SizeLineWait == 0 {
		opts.SizeLineWait = config.SizeLineWait
	}
	if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = config.ReconnectAttempts
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = config.ReconnectDelay
	}
	if opts.NewTicker == nil {
		opts.NewTicker = helper.NewTimerTicker
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Source{opts: opts, logger: opts.Logger}
}

// Open negotiates the locator and establishes a fresh session. Any
// previous session is closed first. The locator is retained verbatim so
// reconnection can reissue the identical request.
func (s *Source) Open(locator string) error {
	if s.session != nil {
		s.Close()
	}

	sess, size, err := s.openSession(locator)
	if err != nil {
		s.report(Event{Type: EventOpenFailed})
		captureOpenFailure(locator, err)
		s.logger.WithError(err).WithField("locator", locator).Error("stream open failed")
		return fmt.Errorf("open stream: %w", err)
	}

	s.locator = locator
	s.session = sess
	s.size = size
	s.pos = 0
	s.eof = false

	sess.logger.WithFields(logrus.Fields{"chunked": sess.chunked, "size": size}).Info("stream opened")
	return nil
}

// Read delivers up to len(p) bytes, waiting a bounded budget for data.
// (0, nil) means "no data right now, try again"; io.EOF means the
// session is terminal. A short read never implies end of stream.
func (s *Source) Read(p []byte) (int, error) { return s.read(p, false) }

// ReadNonBlocking delivers whatever is available right now, possibly
// nothing, and never waits.
func (s *Source) ReadNonBlocking(p []byte) (int, error) { return s.read(p, true) }

// Seek always fails with ErrSeekNotSupported.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrSeekNotSupported
}

// Close tears down the transport and marks end of stream. Idempotent,
// always nil.
func (s *Source) Close() error {
	if s.session != nil {
		s.session.transport.Close()
	}
	s.eof = true
	return nil
}

// IsOpen reports whether the session can still deliver bytes: the
// transport is connected and end of stream has not been reached.
func (s *Source) IsOpen() bool {
	return s.session != nil && !s.eof && s.session.transport.Connected()
}

// Size returns the declared total size, or 0 when the server did not
// declare one (chunked responses never do).
func (s *Source) Size() int64 { return s.size }

// Pos returns the count of logical bytes delivered so far, independent
// of wire framing overhead.
func (s *Source) Pos() int64 { return s.pos }

func (s *Source) read(p []byte, nonblocking bool) (int, error) {
	if p == nil {
		s.report(Event{Type: EventBadArgument})
		return 0, nil
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.session == nil || s.eof {
		return 0, io.EOF
	}

	// A drained sized stream is finished; checking before the transport
	// state avoids refetching a resource that was delivered completely.
	if s.size > 0 && s.pos >= s.size {
		s.session.logger.WithField("pos", s.pos).Debug("stream delivered completely")
		s.Close()
		return 0, io.EOF
	}

	if !s.session.transport.Connected() {
		if err := s.runReconnect(); err != nil {
			return 0, io.EOF
		}
	}

	sess := s.session
	posBefore := s.pos

	var n int
	if sess.chunked {
		n = sess.decoder.Read(p, nonblocking)
	} else {
		n = s.readRaw(sess, p, nonblocking)
	}

	switch {
	case sess.decoder != nil && sess.decoder.Corrupt():
		// The read that hit the corruption delivers nothing; bytes the
		// decoder copied before rejecting the trailer do not count.
		n = 0
		s.pos = posBefore
		s.report(Event{Type: EventBadFrame})
		sess.logger.WithField("pos", s.pos).Error("chunk framing corrupted")
		sess.transport.Close()
		s.eof = true
	case sess.decoder != nil && sess.decoder.Terminal():
		sess.logger.WithField("pos", s.pos).Debug("stream ended")
		sess.transport.Close()
		s.eof = true
	case n == 0 && !nonblocking && sess.transport.Connected():
		// The bounded wait yielded nothing on a live transport. Close
		// softly, without latching end of stream, so the next call runs
		// the reconnect policy instead of this one busy-looping.
		s.report(Event{Type: EventNoData})
		sess.logger.Warn("no data within wait budget")
		sess.transport.Close()
	}

	if n == 0 && s.eof {
		return 0, io.EOF
	}

	return n, nil
}

// readRaw delivers up to len(p) transport bytes with position and size
// bookkeeping. It doubles as the chunk decoder's payload reader, which
// keeps Pos counting logical bytes in both framing modes.
func (s *Source) readRaw(sess *session, p []byte, nonblocking bool) int {
	want := len(p)
	if s.size > 0 {
		remaining := s.size - s.pos
		if remaining <= 0 {
			return 0
		}
		if int64(want) > remaining {
			want = int(remaining)
		}
	}

	avail := sess.transport.Available()
	if avail < want && !nonblocking {
		avail = s.awaitAvailable(sess.transport, want)
	}
	if avail == 0 {
		return 0
	}
	if want > avail {
		want = avail
	}

	n, _ := sess.transport.Read(p[:want])
	s.pos += int64(n)
	countReadBytes(n)

	return n
}

// awaitAvailable polls until at least want bytes are buffered or the
// read wait budget elapses, returning the count available. The target
// is capped by the transport's buffer size so an oversized request
// cannot stall every call for the full budget.
func (s *Source) awaitAvailable(t transport.Transport, want int) int {
	if max := t.BufferSize(); want > max {
		want = max
	}

	return s.await(t, want, s.opts.ReadWait)
}

// await is the shared availability poll, also handed to the chunk
// decoder for frame structure bytes with the size-line budget.
func (s *Source) await(t transport.Transport, min int, budget time.Duration) int {
	avail := t.Available()
	if avail >= min {
		return avail
	}

	ticker := s.opts.NewTicker(s.opts.WaitTick)
	defer ticker.Stop()

	for spent := time.Duration(0); spent < budget; spent += s.opts.WaitTick {
		if !t.Connected() {
			break
		}

		ticker.Reset()
		<-ticker.C()

		if avail = t.Available(); avail >= min {
			break
		}
	}

	return avail
}

// openSession negotiates the locator and wraps the returned transport,
// priming the chunk decoder when the response is chunked. The transport
// is closed on every failure path.
func (s *Source) openSession(locator string) (*session, int64, error) {
	neg, err := s.negotiator()
	if err != nil {
		return nil, 0, err
	}

	res, err := neg.Negotiate(locator)
	if err != nil {
		return nil, 0, err
	}

	if res.Status != http.StatusOK {
		res.Transport.Close()
		return nil, 0, fmt.Errorf("unexpected status %d", res.Status)
	}

	sess := &session{
		id:        uuid.New().String(),
		transport: res.Transport,
		chunked:   res.Chunked,
	}
	sess.logger = s.logger.WithFields(logrus.Fields{"session_id": sess.id, "locator": locator})

	if res.Encoding != "" {
		sess.logger.WithField("transfer_encoding", res.Encoding).Debug("transfer encoding declared")
	}

	if sess.chunked {
		dec := framing.NewDecoder(
			sess.transport,
			func(min int) int { return s.await(sess.transport, min, s.opts.SizeLineWait) },
			func(p []byte, nonblocking bool) int { return s.readRaw(sess, p, nonblocking) },
		)
		if err := dec.Prime(); err != nil {
			res.Transport.Close()
			return nil, 0, fmt.Errorf("prime chunk decoder: %w", err)
		}
		sess.decoder = dec
	}

	return sess, res.Size, nil
}

// runReconnect masks a dropped transport: it closes the dead session
// and reopens the retained locator under the bounded policy. On success
// the fresh session is swapped in and the pending read proceeds; on
// exhaustion end of stream is latched so no later call retries.
func (s *Source) runReconnect() error {
	sess := s.session
	s.report(Event{Type: EventDisconnected})
	sess.logger.WithField("pos", s.pos).Warn("stream disconnected")
	sess.transport.Close()

	// With reconnection disabled a disconnect simply ends the stream;
	// there were no attempts to exhaust.
	if s.opts.ReconnectAttempts <= 0 {
		sess.logger.WithField("pos", s.pos).Debug("reconnect disabled, stream ends")
		s.eof = true
		return reconnect.ErrExhausted
	}

	policy := reconnect.Policy{
		MaxAttempts: s.opts.ReconnectAttempts,
		Delay:       s.opts.ReconnectDelay,
		NewTicker:   s.opts.NewTicker,
		OnAttempt: func(attempt int) {
			s.report(Event{Type: EventReconnectAttempt, Attempt: attempt})
		},
		Logger: sess.logger,
	}

	err := policy.Run(func() error {
		fresh, size, err := s.openSession(s.locator)
		if err != nil {
			return err
		}

		// Position carries over; the redetected size may shrink below
		// it, which reads treat as a drained stream.
		s.session = fresh
		s.size = size
		return nil
	})
	if err != nil {
		s.report(Event{Type: EventReconnectExhausted})
		captureReconnectExhausted(s.locator, s.opts.ReconnectAttempts)
		sess.logger.WithError(err).Error("stream reconnect exhausted")
		s.eof = true
		return err
	}

	s.report(Event{Type: EventReconnected})
	s.session.logger.WithField("pos", s.pos).Info("stream reconnected")
	return nil
}

func (s *Source) negotiator() (Negotiator, error) {
	if s.opts.Negotiator == nil {
		client, err := negotiate.New(negotiate.Options{Logger: s.logger})
		if err != nil {
			return nil, err
		}
		s.opts.Negotiator = client
	}

	return s.opts.Negotiator, nil
}

func (s *Source) report(event Event) {
	countEvent(event.Type)

	if s.opts.Observer == nil {
		return
	}
	dontpanic.Try(func() { s.opts.Observer(event) })
}
