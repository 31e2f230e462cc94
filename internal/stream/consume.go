package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/harborml/skiff/internal/llm"
)

// Consume reads body to completion through a fresh Normalizer and delivers
// canonical events on the returned channel. The channel is closed after
// the terminal event; exactly one event has Done=true.
//
// Cancelling ctx closes body promptly so the transport connection is
// released even while a read is blocked. A read failure other than EOF is
// surfaced as a final event with Err set.
func Consume(ctx context.Context, body io.ReadCloser, logger *slog.Logger) <-chan llm.StreamEvent {
	if logger == nil {
		logger = slog.Default()
	}
	events := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(events)

		// Unblock the read loop when the caller abandons the stream.
		readDone := make(chan struct{})
		defer close(readDone)
		go func() {
			select {
			case <-ctx.Done():
				body.Close()
			case <-readDone:
			}
		}()
		defer body.Close()

		n := NewNormalizer(logger)
		buf := make([]byte, 4096)
		for {
			nr, err := body.Read(buf)
			if nr > 0 {
				for _, ev := range n.Feed(buf[:nr]) {
					events <- ev
				}
				if n.Done() {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					for _, ev := range n.Finish() {
						events <- ev
					}
					return
				}
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				logger.Debug("stream read failed", "error", err)
				events <- llm.StreamEvent{Done: true, Err: err}
				return
			}
		}
	}()

	return events
}
