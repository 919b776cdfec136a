package framing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// meteredWire serves a fixed byte script but only exposes what feed has
// released, so tests control exactly when the wire starves.
type meteredWire struct {
	data  []byte
	avail int
}

func newMeteredWire(data string) *meteredWire {
	return &meteredWire{data: []byte(data)}
}

func (w *meteredWire) feed(n int) {
	w.avail += n
	if w.avail > len(w.data) {
		w.avail = len(w.data)
	}
}

func (w *meteredWire) feedAll() { w.avail = len(w.data) }

func (w *meteredWire) Available() int { return w.avail }

func (w *meteredWire) Read(p []byte) (int, error) {
	n := len(p)
	if n > w.avail {
		n = w.avail
	}
	n = copy(p, w.data[:n])
	w.data = w.data[n:]
	w.avail -= n
	return n, nil
}

func newTestDecoder(wire *meteredWire) *Decoder {
	await := func(min int) int { return wire.Available() }
	payload := func(p []byte, nonblocking bool) int {
		n, _ := wire.Read(p)
		return n
	}
	return NewDecoder(wire, await, payload)
}

// drain reads until the decoder reports terminal or corrupt, or stops
// making progress.
func drain(t *testing.T, d *Decoder, readSize int) string {
	t.Helper()

	var out []byte
	buf := make([]byte, readSize)
	for i := 0; i < 1000; i++ {
		n := d.Read(buf, false)
		out = append(out, buf[:n]...)
		if d.Terminal() || d.Corrupt() {
			break
		}
		if n == 0 {
			break
		}
	}
	return string(out)
}

func TestDecoderWikipedia(t *testing.T) {
	wire := newMeteredWire("4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")
	wire.feedAll()

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	require.Equal(t, "Wikipedia", drain(t, d, 3))
	require.True(t, d.Terminal())
	require.False(t, d.Corrupt())

	buf := make([]byte, 3)
	require.Equal(t, 0, d.Read(buf, false), "terminal decoder must not produce bytes")
}

func TestDecoderSliceIndependence(t *testing.T) {
	const stream = "3\r\nfoo\r\n8\r\nbarbazqu\r\n1\r\nx\r\n0\r\n\r\n"
	const want = "foobarbazqux"

	for _, readSize := range []int{1, 2, 3, 5, 7, 16, 64} {
		t.Run(fmt.Sprintf("read size %d", readSize), func(t *testing.T) {
			wire := newMeteredWire(stream)
			wire.feedAll()

			d := newTestDecoder(wire)
			require.NoError(t, d.Prime())
			require.Equal(t, want, drain(t, d, readSize))
			require.True(t, d.Terminal())
		})
	}
}

func TestDecoderPrime(t *testing.T) {
	testCases := []struct {
		desc       string
		stream     string
		expectErr  bool
		terminal   bool
		firstChunk int64
	}{
		{
			desc:       "well-formed first frame",
			stream:     "4\r\nWiki\r\n0\r\n\r\n",
			firstChunk: 4,
		},
		{
			desc:      "empty wire",
			stream:    "",
			expectErr: true,
		},
		{
			desc:      "garbage size line",
			stream:    "zz\r\nWiki\r\n",
			expectErr: true,
		},
		{
			desc:      "size line exceeding the bound",
			stream:    strings.Repeat("f", 200) + "\r\n",
			expectErr: true,
		},
		{
			desc:     "terminal frame first means empty stream",
			stream:   "0\r\n\r\n",
			terminal: true,
		},
		{
			desc:       "chunk extension is ignored",
			stream:     "4;x=y\r\nWiki\r\n0\r\n\r\n",
			firstChunk: 4,
		},
		{
			desc:       "uppercase hex size",
			stream:     "A\r\n0123456789\r\n0\r\n\r\n",
			firstChunk: 10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			wire := newMeteredWire(tc.stream)
			wire.feedAll()

			d := newTestDecoder(wire)
			err := d.Prime()

			if tc.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.terminal, d.Terminal())
			require.Equal(t, tc.firstChunk, d.Remaining())
		})
	}
}

func TestDecoderCorruptDelimiter(t *testing.T) {
	wire := newMeteredWire("4\r\nWikiXX5\r\npedia\r\n0\r\n\r\n")
	wire.feedAll()

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	buf := make([]byte, 8)
	require.Equal(t, 0, d.Read(buf, false), "the read crossing the corruption point delivers nothing")

	require.True(t, d.Corrupt())
	require.False(t, d.Terminal())

	require.Equal(t, 0, d.Read(buf, false), "no bytes beyond the corruption point")
}

func TestDecoderCorruptDelimiterAcrossCalls(t *testing.T) {
	wire := newMeteredWire("4\r\nWikiXX5\r\npedia\r\n0\r\n\r\n")
	wire.feed(7) // "4\r\nWiki"

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	// The trailer is not on the wire yet, so the chunk's payload is a
	// clean delivery and stands.
	buf := make([]byte, 8)
	n := d.Read(buf, false)
	require.Equal(t, 4, n)
	require.Equal(t, "Wiki", string(buf[:n]))
	require.False(t, d.Corrupt())

	wire.feed(2) // "XX"
	require.Equal(t, 0, d.Read(buf, false), "the read encountering the bad delimiter returns zero")
	require.True(t, d.Corrupt())
}

func TestDecoderMalformedSizeLineEndsStream(t *testing.T) {
	wire := newMeteredWire("4\r\nWiki\r\nQQ\r\npedia\r\n")
	wire.feedAll()

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	buf := make([]byte, 8)
	require.Equal(t, 4, d.Read(buf, false))
	require.True(t, d.Terminal(), "malformed size line ends the stream")
	require.False(t, d.Corrupt())
	require.Equal(t, 0, d.Read(buf, false))
}

func TestDecoderSizeLineTimeoutEndsStream(t *testing.T) {
	// The wire ends after the first frame's trailing delimiter, so the
	// next size line can never arrive.
	wire := newMeteredWire("4\r\nWiki\r\n")
	wire.feedAll()

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	buf := make([]byte, 8)
	require.Equal(t, 4, d.Read(buf, false))
	require.True(t, d.Terminal())
}

func TestDecoderNonBlockingStarvation(t *testing.T) {
	wire := newMeteredWire("4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")
	wire.feed(3) // "4\r\n"

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	buf := make([]byte, 3)
	read := func() int { return d.Read(buf, true) }

	require.Equal(t, 0, read(), "no payload on the wire yet")
	require.Equal(t, int64(4), d.Remaining())

	var out []byte
	wire.feed(4) // "Wiki"
	n := read()
	out = append(out, buf[:n]...)
	n = read()
	out = append(out, buf[:n]...)
	require.Equal(t, "Wiki", string(out))

	// Delimiter arrives one byte at a time; the decoder parks in between.
	wire.feed(1) // "\r"
	require.Equal(t, 0, read())
	wire.feed(1) // "\n"
	require.Equal(t, 0, read(), "size line still missing")

	wire.feed(3) // "5\r\n"
	require.Equal(t, 0, read(), "chunk open but payload not yet on the wire")
	require.Equal(t, int64(5), d.Remaining())

	wire.feed(5) // "pedia"
	n = read()
	out = append(out, buf[:n]...)
	n = read()
	out = append(out, buf[:n]...)
	require.Equal(t, "Wikipedia", string(out))
	require.False(t, d.Terminal(), "terminal frame not yet readable")

	wire.feed(7) // "\r\n0\r\n\r\n"
	require.Equal(t, 0, read())
	require.True(t, d.Terminal())
}

func TestDecoderZeroLengthDestination(t *testing.T) {
	wire := newMeteredWire("4\r\nWiki\r\n0\r\n\r\n")
	wire.feedAll()

	d := newTestDecoder(wire)
	require.NoError(t, d.Prime())

	require.Equal(t, 0, d.Read(nil, false))
	require.Equal(t, int64(4), d.Remaining(), "zero-length read must not consume")
}
