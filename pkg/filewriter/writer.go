// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package filewriter persists extracted code blocks to disk.
//
// A Writer owns every file it creates. Commands reach it over a bounded
// queue and are applied one at a time, in the order they were submitted, by
// the goroutine running Run. Submit blocks while the queue is full.
package filewriter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

// DefaultQueueSize is the queue capacity used when none is given.
const DefaultQueueSize = 32

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("file writer is closed")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("file writer is already running")
)

// Command is a unit of work for the Writer: Write or RemoveAll.
type Command interface {
	command()
}

// Write appends Data to the file at Path, creating it if needed.
type Write struct {
	Path string
	Data []byte
}

// RemoveAll deletes every file created so far, newest first.
// Reply, if set, receives the result and must have room for one value.
type RemoveAll struct {
	Reply chan<- RemoveResult
}

// RemoveResult lists what a RemoveAll deleted.
type RemoveResult struct {
	Removed []string
	Failed  []string
}

type barrier struct {
	done chan struct{}
}

type listFiles struct {
	reply chan []string
}

func (Write) command()     {}
func (RemoveAll) command() {}
func (barrier) command()   {}
func (listFiles) command() {}

// Writer is the file persistence worker.
type Writer struct {
	queue    chan Command
	log      observability.Logger
	counters *observability.Counters
	root     string

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closing   chan struct{}
	started   atomic.Bool
	done      chan struct{}

	// Owned by the Run goroutine.
	files       []string
	seen        map[string]struct{}
	rootChecked bool
	createdRoot bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used to report file errors.
func WithLogger(l observability.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithCounters records writes and removals into c.
func WithCounters(c *observability.Counters) Option {
	return func(w *Writer) {
		w.counters = c
	}
}

// WithRoot names the output directory. If the Writer creates it, RemoveAll
// also removes it once it is empty.
func WithRoot(dir string) Option {
	return func(w *Writer) {
		w.root = filepath.Clean(dir)
	}
}

// New creates a Writer with a queue of the given capacity.
func New(queueSize int, opts ...Option) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Writer{
		queue:   make(chan Command, queueSize),
		log:     observability.NewNop(),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run applies commands until the queue is closed and drained.
func (w *Writer) Run() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	w.loop()
	return nil
}

// Start runs the worker loop in a new goroutine.
func (w *Writer) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go w.loop()
	return nil
}

func (w *Writer) loop() {
	defer close(w.done)

	w.log.Debug("file writer started", observability.Int("queue_capacity", cap(w.queue)))
	for cmd := range w.queue {
		w.apply(cmd)
	}
	w.log.Debug("file writer stopped", observability.Int("files", len(w.files)))
}

// Submit enqueues cmd, blocking while the queue is full. A Submit blocked
// on a full queue returns ErrClosed once Close is called.
func (w *Writer) Submit(ctx context.Context, cmd Command) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.queue <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.closing:
		return ErrClosed
	}
}

// Sync waits until every command submitted before it has been applied.
func (w *Writer) Sync(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if err := w.Submit(ctx, b); err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveAll submits a RemoveAll and waits for its result.
func (w *Writer) RemoveAll(ctx context.Context) (RemoveResult, error) {
	reply := make(chan RemoveResult, 1)
	if err := w.Submit(ctx, RemoveAll{Reply: reply}); err != nil {
		return RemoveResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return RemoveResult{}, ctx.Err()
	}
}

// Files returns the paths created so far, oldest first.
func (w *Writer) Files(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := w.Submit(ctx, listFiles{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case files := <-reply:
		return files, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the queue and, if the worker has started, waits for it to
// drain. Safe to call multiple times.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		// Wake blocked submitters so they release the read lock.
		close(w.closing)
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	if w.started.Load() {
		<-w.done
	}
	return nil
}

// QueueLen returns the number of commands waiting.
func (w *Writer) QueueLen() int {
	return len(w.queue)
}

func (w *Writer) apply(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("file writer command panicked", observability.String("panic", fmt.Sprint(r)))
		}
	}()

	switch c := cmd.(type) {
	case Write:
		w.write(c)
	case RemoveAll:
		res := w.removeAll()
		if c.Reply != nil {
			c.Reply <- res
		}
	case barrier:
		close(c.done)
	case listFiles:
		c.reply <- append([]string(nil), w.files...)
	default:
		w.log.Warn("unknown file writer command", observability.String("type", fmt.Sprintf("%T", cmd)))
	}
}

func (w *Writer) write(c Write) {
	if c.Path == "" {
		w.report(gerrors.FileIOError("write without a path", nil))
		return
	}

	if w.root != "" && !w.rootChecked {
		w.rootChecked = true
		if _, err := os.Stat(w.root); errors.Is(err, os.ErrNotExist) {
			w.createdRoot = true
		}
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		w.report(gerrors.FileIOError("create directory", err).WithContext("path", c.Path))
		return
	}

	f, err := os.OpenFile(c.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		w.report(gerrors.FileIOError("open file", err).WithContext("path", c.Path))
		return
	}
	if _, ok := w.seen[c.Path]; !ok {
		w.seen[c.Path] = struct{}{}
		w.files = append(w.files, c.Path)
		w.log.Debug("created file", observability.String("path", c.Path))
	}

	n, err := f.Write(c.Data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		w.report(gerrors.FileIOError("append", err).WithContext("path", c.Path))
		return
	}
	w.counters.RecordWrite(n, nil)
}

func (w *Writer) removeAll() RemoveResult {
	var res RemoveResult
	for i := len(w.files) - 1; i >= 0; i-- {
		path := w.files[i]
		err := os.Remove(path)
		switch {
		case err == nil:
			res.Removed = append(res.Removed, path)
			w.log.Info("deleted file", observability.String("path", path))
		case errors.Is(err, os.ErrNotExist):
			w.log.Debug("file already gone", observability.String("path", path))
		default:
			res.Failed = append(res.Failed, path)
			w.log.Warn("delete failed", observability.String("path", path),
				observability.Err(gerrors.FileIOError("remove", err)))
		}
	}
	w.files = nil
	w.seen = make(map[string]struct{})
	w.counters.RecordRemoved(len(res.Removed))

	if w.createdRoot && len(res.Failed) == 0 {
		if err := os.Remove(w.root); err == nil {
			w.createdRoot = false
			w.rootChecked = false
			w.log.Debug("removed output directory", observability.String("dir", w.root))
		}
	}
	return res
}

func (w *Writer) report(err *gerrors.Error) {
	w.counters.RecordWrite(0, err)
	w.log.Error("file write failed", observability.Err(err))
}
