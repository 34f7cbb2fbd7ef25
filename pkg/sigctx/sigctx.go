// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sigctx provides contexts that are cancelled by OS signals.
package sigctx

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
)

// ErrInterrupted is the cancellation cause when a signal arrives.
var ErrInterrupted = errors.New("interrupted")

// signalContext cancels its context when a signal arrives.
// It stops signal delivery and its watcher goroutine on stop.
type signalContext struct {
	context.Context

	cancel   context.CancelCauseFunc
	ch       chan os.Signal
	stopOnce sync.Once
	stopCh   chan struct{}
}

// stop releases the signal channel and the watcher goroutine.
// It can be called multiple times safely.
func (sc *signalContext) stop() {
	sc.stopOnce.Do(func() {
		signal.Stop(sc.ch)
		sc.cancel(context.Canceled)
		close(sc.stopCh)
	})
}

// WithSignal returns a context that is cancelled with ErrInterrupted when
// one of sigs is received. While it is active the signals do not reach
// the default handler, so an interrupt ends the request instead of the
// process. The returned cancel function must be called.
//
//	ctx, cancel := sigctx.WithSignal(context.Background(), os.Interrupt)
//	defer cancel()
func WithSignal(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	sc := &signalContext{
		Context: ctx,
		cancel:  cancel,
		ch:      make(chan os.Signal, 1),
		stopCh:  make(chan struct{}),
	}
	signal.Notify(sc.ch, sigs...)

	go func() {
		select {
		case <-sc.ch:
			cancel(ErrInterrupted)
		case <-sc.stopCh:
		case <-ctx.Done():
		}
	}()

	return sc, sc.stop
}

// Interrupted reports whether ctx was cancelled by a signal.
func Interrupted(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrInterrupted)
}
