// Package negotiate performs the HTTP request/response exchange for a
// stream locator and hands the connected transport, with any body bytes
// already buffered, over to the reader.
package negotiate

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"gitlab.com/audiopipe/httpsource/internal/log"
	"gitlab.com/audiopipe/httpsource/internal/transport"
)

const (
	defaultUserAgent        = "httpsource"
	defaultDialTimeout      = 10 * time.Second
	defaultResponseTimeout  = 10 * time.Second
	defaultMaxRedirects     = 5
	defaultResolveCacheSize = 64
)

var (
	// ErrTooManyRedirects means the redirect budget was exhausted before
	// reaching a non-redirect response.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrMalformedResponse means the status line could not be parsed.
	ErrMalformedResponse = errors.New("malformed response")
)

// DialFunc establishes the raw connection for a scheme and address.
// Tests substitute their own.
type DialFunc func(scheme, addr string) (net.Conn, error)

// Options configures a Client. The zero value follows redirects and
// reuses connections, as the stream sources this library replaces did.
type Options struct {
	UserAgent        string
	DialTimeout      time.Duration
	ResponseTimeout  time.Duration
	TLSConfig        *tls.Config
	DisableRedirects bool
	DisableReuse     bool
	MaxRedirects     int
	CacheSize        int
	Dial             DialFunc
	Logger           *logrus.Entry
}

// Result is the outcome of a successful exchange. The transport owns the
// connection; body bytes read past the headers are buffered inside it.
type Result struct {
	Status    int
	Size      int64
	Chunked   bool
	Encoding  string
	FinalURL  string
	Transport transport.Transport
}

// Client negotiates stream requests. Final URLs of followed redirects
// are cached per locator so later exchanges (reconnects, mostly) skip
// known redirect hops.
type Client struct {
	opts     Options
	resolved *lru.Cache
	logger   *logrus.Entry
}

// New returns a Client with defaults applied.
func New(opts Options) (*Client, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.ResponseTimeout == 0 {
		opts.ResponseTimeout = defaultResponseTimeout
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = defaultResolveCacheSize
	}

	resolved, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{opts: opts, resolved: resolved, logger: logger}, nil
}

// Negotiate performs the exchange for locator. Redirect responses are
// followed up to the budget unless disabled; the response status is
// returned as-is for the caller to judge.
func (c *Client) Negotiate(locator string) (*Result, error) {
	countRequest()

	target := locator
	if cached, ok := c.resolved.Get(locator); ok {
		target = cached.(string)
		countResolveHit()
	}

	res, err := c.fetch(target)
	if err != nil && target != locator {
		// The cached final URL went stale; start over from the locator.
		c.resolved.Remove(locator)
		res, err = c.fetch(locator)
	}
	if err != nil {
		countFailure()
		return nil, err
	}

	if res.FinalURL != locator {
		c.resolved.Add(locator, res.FinalURL)
	}

	c.logger.WithFields(logrus.Fields{
		"locator":   locator,
		"final_url": res.FinalURL,
		"status":    res.Status,
		"chunked":   res.Chunked,
		"size":      res.Size,
	}).Debug("stream negotiated")

	return res, nil
}

func (c *Client) fetch(rawurl string) (*Result, error) {
	var conn net.Conn
	var br *bufio.Reader

	target := rawurl
	for redirects := 0; ; redirects++ {
		if redirects > c.opts.MaxRedirects {
			if conn != nil {
				conn.Close()
			}
			return nil, ErrTooManyRedirects
		}

		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse locator: %w", err)
		}

		if conn == nil {
			if conn, err = c.dial(u); err != nil {
				return nil, fmt.Errorf("dial %s: %w", u.Host, err)
			}
			br = bufio.NewReader(conn)
		}

		if err := c.writeRequest(conn, u); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send request: %w", err)
		}

		status, header, err := c.readResponse(conn, br)
		if err != nil {
			conn.Close()
			return nil, err
		}

		if location := header.Get("Location"); isRedirect(status) && location != "" && !c.opts.DisableRedirects {
			next, err := u.Parse(location)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("resolve redirect: %w", err)
			}

			countRedirect()
			c.logger.WithFields(logrus.Fields{
				"status":    status,
				"final_url": next.String(),
			}).Debug("following redirect")

			if !c.reusable(u, next, header) {
				conn.Close()
				conn, br = nil, nil
			}
			target = next.String()
			continue
		}

		encoding := header.Get("Transfer-Encoding")
		chunked := strings.Contains(strings.ToLower(encoding), "chunked")

		size := parseSize(header.Get("Content-Length"))
		if chunked {
			size = 0
		}

		return &Result{
			Status:    status,
			Size:      size,
			Chunked:   chunked,
			Encoding:  encoding,
			FinalURL:  target,
			Transport: transport.NewConn(conn, br),
		}, nil
	}
}

func (c *Client) dial(u *url.URL) (net.Conn, error) {
	switch u.Scheme {
	case "http":
		if c.opts.Dial != nil {
			return c.opts.Dial(u.Scheme, hostPort(u, "80"))
		}
		return net.DialTimeout("tcp", hostPort(u, "80"), c.opts.DialTimeout)
	case "https":
		if c.opts.Dial != nil {
			return c.opts.Dial(u.Scheme, hostPort(u, "443"))
		}
		dialer := &net.Dialer{Timeout: c.opts.DialTimeout}
		return tls.DialWithDialer(dialer, "tcp", hostPort(u, "443"), c.opts.TLSConfig)
	default:
		return nil, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func (c *Client) writeRequest(conn net.Conn, u *url.URL) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.ResponseTimeout)); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.RequestURI())
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", c.opts.UserAgent)
	b.WriteString("Accept: */*\r\n")
	// The reader counts raw payload bytes; a compressed body would break
	// both the size bookkeeping and the decoder downstream.
	b.WriteString("Accept-Encoding: identity\r\n")

	if user := u.User; user != nil {
		pass, _ := user.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + pass))
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", cred)
	}

	if c.opts.DisableReuse {
		b.WriteString("Connection: close\r\n")
	} else {
		b.WriteString("Connection: keep-alive\r\n")
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(conn, b.String())
	return err
}

func (c *Client) readResponse(conn net.Conn, br *bufio.Reader) (int, textproto.MIMEHeader, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.opts.ResponseTimeout)); err != nil {
		return 0, nil, err
	}

	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return 0, nil, fmt.Errorf("read status line: %w", err)
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, nil, ErrMalformedResponse
	}

	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, ErrMalformedResponse
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return 0, nil, fmt.Errorf("read headers: %w", err)
	}

	// The deadline must not leak into the transport handed to the reader.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return 0, nil, err
	}

	return status, header, nil
}

// reusable reports whether the redirect hop can ride the same
// connection: same origin, an explicitly empty body, and nobody asked
// for the connection to close.
func (c *Client) reusable(from, to *url.URL, header textproto.MIMEHeader) bool {
	if c.opts.DisableReuse {
		return false
	}
	if from.Scheme != to.Scheme || from.Host != to.Host {
		return false
	}
	if header.Get("Transfer-Encoding") != "" || header.Get("Content-Length") != "0" {
		return false
	}
	return !strings.EqualFold(header.Get("Connection"), "close")
}

func hostPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}

func isRedirect(status int) bool {
	switch status {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

func parseSize(contentLength string) int64 {
	if contentLength == "" {
		return 0
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}
