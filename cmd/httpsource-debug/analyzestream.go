package main

import (
	"context"
	"fmt"

	"gitlab.com/audiopipe/httpsource/internal/stats"
)

func analyzeStream(streamURL string) {
	fetch := &stats.Fetch{
		URL:         streamURL,
		Interactive: true,
	}

	noError(fetch.Perform(context.Background()))

	fmt.Println("\n--- Exchange metrics:")
	for _, entry := range []metric{
		{"response header time", fetch.Exchange.ResponseHeader()},
		{"HTTP status", fetch.Exchange.HTTPStatus()},
		{"chunked framing", fetch.Exchange.Chunked()},
		{"transfer encoding", fetch.Exchange.Encoding()},
		{"final URL", fetch.Exchange.FinalURL()},
		{"declared size", humanBytes(fetch.Exchange.DeclaredSize())},
	} {
		entry.print()
	}

	fmt.Println("\n--- Body metrics:")
	for _, entry := range []metric{
		{"time to first byte", fetch.Body.FirstByte()},
		{"drain time", fetch.Body.Elapsed()},
		{"payload size", humanBytes(fetch.Body.Bytes())},
		{"read calls", fetch.Body.Reads()},
		{"zero reads", fetch.Body.ZeroReads()},
		{"reconnect attempts", fetch.Body.Reconnects()},
		{"corrupt frames", fetch.Body.CorruptFrames()},
		{"reached end of stream", fetch.Body.EOF()},
		{"throughput", fmt.Sprintf("%s/s", humanBytes(int64(fetch.Body.ThroughputBPS())))},
	} {
		entry.print()
	}
}

type metric struct {
	key   string
	value interface{}
}

func (m metric) print() { fmt.Printf("%-40s %v\n", m.key, m.value) }
