// Package framing decodes the HTTP chunked transfer-encoding wire format
// into a contiguous logical byte stream, hiding frame boundaries from
// the caller.
package framing

import (
	"errors"
	"strconv"
)

// Wire is the byte source the decoder pulls frame structure from. It is
// the same stream the payload arrives on; the decoder itself only
// consumes the framing bytes (delimiters and size lines).
type Wire interface {
	Available() int
	Read(p []byte) (int, error)
}

// AwaitFunc waits, bounded, until at least min bytes are available on
// the wire, and returns the count available afterwards. A zero return
// means the budget elapsed without data.
type AwaitFunc func(min int) int

// PayloadFunc delivers up to len(p) chunk payload bytes into p and
// returns the count delivered. Position bookkeeping stays with the
// caller.
type PayloadFunc func(p []byte, nonblocking bool) int

// maxSizeLine bounds the chunk-size line, including any chunk extension.
// Hex sizes fit in 16 digits; anything longer than this is garbage.
const maxSizeLine = 128

type state int

const (
	statePayload state = iota
	stateDelimiter
	stateSizeLine
	stateTerminal
	stateCorrupt
)

var (
	errStarved   = errors.New("chunk size line incomplete")
	errMalformed = errors.New("malformed chunk size line")
)

// Decoder is the chunk framing state machine. Frames look like
// `<hex-size>CRLF<payload>CRLF`; a zero size marks the terminal frame.
// The decoder tracks the remaining byte count of the open chunk and
// parks mid-delimiter or mid-size-line when the wire starves, resuming
// on the next call.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	wire    Wire
	await   AwaitFunc
	payload PayloadFunc

	st        state
	remaining int64
	delim     [2]byte
	delimLen  int
	line      []byte
}

// NewDecoder returns a decoder positioned before the first chunk-size
// line. Prime must be called before Read.
func NewDecoder(wire Wire, await AwaitFunc, payload PayloadFunc) *Decoder {
	return &Decoder{wire: wire, await: await, payload: payload, st: stateSizeLine}
}

// Prime parses the first chunk-size line, waiting up to the await
// budget. Opening a chunked session fails if this does not parse; a
// first size of zero is a valid empty stream and leaves the decoder
// terminal.
func (d *Decoder) Prime() error {
	if d.st != stateSizeLine {
		return nil
	}

	if err := d.readSizeLine(false); err != nil {
		d.st = stateTerminal
		return err
	}

	return nil
}

// Read delivers up to len(p) logical payload bytes. A zero return does
// not imply end of stream unless Terminal or Corrupt report true; the
// wire may simply have starved.
func (d *Decoder) Read(p []byte, nonblocking bool) int {
	for {
		switch d.st {
		case stateTerminal, stateCorrupt:
			return 0
		case stateDelimiter, stateSizeLine:
			if !d.advance(nonblocking) {
				return 0
			}
		case statePayload:
			want := d.remaining
			if int64(len(p)) < want {
				want = int64(len(p))
			}

			n := d.payload(p[:want], nonblocking)
			d.remaining -= int64(n)

			if d.remaining == 0 {
				d.st = stateDelimiter
				d.delimLen = 0
				// Consume the frame trailer eagerly so a terminal frame
				// is seen in the same call that drained its payload.
				d.advance(nonblocking)

				// A corrupt trailer taints the whole call: nothing read
				// past the corruption point may count, and the payload
				// was only valid if its trailer was.
				if d.st == stateCorrupt {
					return 0
				}
			}

			return n
		}
	}
}

// Remaining returns the undelivered byte count of the open chunk.
func (d *Decoder) Remaining() int64 { return d.remaining }

// Terminal reports whether the stream ended with a terminal frame or an
// unreadable size line.
func (d *Decoder) Terminal() bool { return d.st == stateTerminal }

// Corrupt reports whether framing was violated. The decoder never
// resynchronizes after corruption.
func (d *Decoder) Corrupt() bool { return d.st == stateCorrupt }

// advance drives the machine through the delimiter and size-line states
// until a fresh chunk is open, the stream ends, or the wire starves.
// It reports whether a fresh chunk is open.
func (d *Decoder) advance(nonblocking bool) bool {
	for {
		switch d.st {
		case stateDelimiter:
			if !d.readDelimiter(nonblocking) {
				return false
			}
		case stateSizeLine:
			switch err := d.readSizeLine(nonblocking); err {
			case nil:
			case errStarved:
				if nonblocking {
					return false
				}
				// Blocking budget elapsed mid-line: unreadable size
				// line ends the stream.
				d.st = stateTerminal
				return false
			default:
				d.st = stateTerminal
				return false
			}
		default:
			return d.st == statePayload
		}
	}
}

// readDelimiter consumes the CRLF closing the previous chunk. The two
// bytes may arrive across separate calls. Anything other than CRLF is
// corruption.
func (d *Decoder) readDelimiter(nonblocking bool) bool {
	for d.delimLen < 2 {
		if d.wire.Available() == 0 {
			if nonblocking || d.await(1) == 0 {
				return false
			}
		}

		n, _ := d.wire.Read(d.delim[d.delimLen:2])
		if n == 0 {
			return false
		}
		d.delimLen += n
	}

	if d.delim[0] != '\r' || d.delim[1] != '\n' {
		d.st = stateCorrupt
		countCorruption()
		return false
	}

	d.st = stateSizeLine
	d.line = d.line[:0]
	return true
}

// readSizeLine accumulates bytes until LF and parses the hex size.
func (d *Decoder) readSizeLine(nonblocking bool) error {
	var b [1]byte
	for {
		if d.wire.Available() == 0 {
			if nonblocking || d.await(1) == 0 {
				return errStarved
			}
		}

		n, _ := d.wire.Read(b[:])
		if n == 0 {
			return errStarved
		}

		if b[0] == '\n' {
			return d.parseSizeLine()
		}

		if len(d.line) >= maxSizeLine {
			return errMalformed
		}
		d.line = append(d.line, b[0])
	}
}

// parseSizeLine interprets the accumulated line. The size is the leading
// hexadecimal run; a chunk extension after it is ignored.
func (d *Decoder) parseSizeLine() error {
	line := d.line
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	digits := 0
	for digits < len(line) && isHexDigit(line[digits]) {
		digits++
	}
	if digits == 0 {
		return errMalformed
	}

	size, err := strconv.ParseInt(string(line[:digits]), 16, 64)
	if err != nil {
		return errMalformed
	}

	if size == 0 {
		d.st = stateTerminal
		return nil
	}

	countChunk()

	d.remaining = size
	d.st = statePayload
	return nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
