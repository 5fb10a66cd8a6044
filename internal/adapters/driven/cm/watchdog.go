package cm

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// watchdog cancels a request once no bytes have moved in either direction
// for the idle timeout. Every read of the request or response body resets it.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	fired   atomic.Bool
}

// newWatchdog returns a context derived from ctx that is cancelled when the
// watchdog fires or is stopped.
func newWatchdog(ctx context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancel(ctx)
	w := &watchdog{timeout: timeout, cancel: cancel}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel()
	})
	return ctx, w
}

func (w *watchdog) touch() {
	if !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

// stop releases the request context.
func (w *watchdog) stop() {
	w.timer.Stop()
	w.cancel()
}

// annotate marks err as an idle timeout when the watchdog caused it.
func (w *watchdog) annotate(err error) error {
	if err == nil || !w.fired.Load() {
		return err
	}
	return fmt.Errorf("no data transferred for %s: %w", w.timeout, err)
}

// watchedBody resets the watchdog on every read. A response body also
// stops the watchdog when closed.
type watchedBody struct {
	io.ReadCloser
	w       *watchdog
	release bool
}

func (b *watchedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.w.touch()
	}
	if err != nil && err != io.EOF {
		err = b.w.annotate(err)
	}
	return n, err
}

func (b *watchedBody) Close() error {
	err := b.ReadCloser.Close()
	if b.release {
		b.w.stop()
	}
	return err
}
