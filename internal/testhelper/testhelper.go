package testhelper

import (
	"fmt"
	"strings"
)

// ChunkedBody renders the pieces in chunked transfer encoding, one
// chunk per piece, followed by the terminal frame. Pieces must not be
// empty: a zero size marks the end of the stream.
func ChunkedBody(pieces ...string) string {
	var b strings.Builder
	for _, p := range pieces {
		fmt.Fprintf(&b, "%x\r\n%s\r\n", len(p), p)
	}
	b.WriteString("0\r\n\r\n")

	return b.String()
}
