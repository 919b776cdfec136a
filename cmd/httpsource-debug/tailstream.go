package main

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/juju/ratelimit"
	"gitlab.com/audiopipe/httpsource/source"
	"golang.org/x/sync/errgroup"
)

func tailStream(streamURL string, byteRate int64) {
	src := source.New(source.Options{})
	noError(src.Open(streamURL))
	defer src.Close()

	var bucket *ratelimit.Bucket
	if byteRate > 0 {
		bucket = ratelimit.NewBucketWithRate(float64(byteRate), byteRate)
	}

	var drained int64

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		buf := make([]byte, 32*1024)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				if _, err := os.Stdout.Write(buf[:n]); err != nil {
					return err
				}
				atomic.AddInt64(&drained, int64(n))
				if bucket != nil {
					bucket.Wait(int64(n))
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				msg("tailed %s", humanBytes(atomic.LoadInt64(&drained)))
			}
		}
	})

	noError(g.Wait())
	msg("stream ended after %s", humanBytes(atomic.LoadInt64(&drained)))
}
