// Package recorder captures the screen into a single video blob.
//
// A Recorder owns the captured stream from Start until the first of Stop, the
// stream ending on its own, or Close. Tracks are released exactly once on
// whichever path gets there first; later calls are no-ops.
package recorder

import (
	"context"
	"sync"
	"time"
)

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one captured media track. Stop releases the device.
type Track interface {
	Kind() TrackKind
	Stop()
}

// Stream is an acquired capture. Ended is closed if capture stops without being
// asked to, for example when the user revokes screen sharing.
type Stream interface {
	Tracks() []Track
	Ended() <-chan struct{}
}

type Options struct {
	Audio     bool
	FrameRate int
	// Display selects the screen; its meaning is up to the Source.
	Display string
}

type Source interface {
	Acquire(ctx context.Context, opts Options) (Stream, error)
}

// Encoder turns a stream into a container. Finish returns the complete file;
// Abort discards whatever was written.
type Encoder interface {
	Begin(stream Stream) (Encoding, error)
}

type Encoding interface {
	Finish() ([]byte, error)
	Abort()
}

type Recording struct {
	Data      []byte
	MIMEType  string
	Duration  time.Duration
	AutoEnded bool
}

type state int

const (
	stateIdle state = iota
	stateRecording
	stateStopped
	stateClosed
)

type Recorder struct {
	source   Source
	encoder  Encoder
	opts     Options
	mimeType string
	// OnAutoStop, when set, is called after the stream ended on its own and the
	// recording was finalized.
	OnAutoStop func(*Recording, error)
	now        func() time.Time

	mu        sync.Mutex
	state     state
	stream    Stream
	encoding  Encoding
	startedAt time.Time
	release   *sync.Once
	quit      chan struct{}
	watchDone chan struct{}
	result    *Recording
	resultErr error
}

func New(source Source, encoder Encoder, opts Options) *Recorder {
	mime := "video/webm"
	if m, ok := encoder.(interface{ MIMEType() string }); ok {
		mime = m.MIMEType()
	}
	return &Recorder{
		source:   source,
		encoder:  encoder,
		opts:     opts,
		mimeType: mime,
		now:      time.Now,
	}
}

// Start acquires the screen and begins encoding. A nil return means recording has started.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateRecording:
		return ErrAlreadyRecording
	case stateClosed:
		return ErrClosed
	}

	stream, err := r.source.Acquire(ctx, r.opts)
	if err != nil {
		return sourceError("start", err)
	}

	release := new(sync.Once)
	encoding, err := r.encoder.Begin(stream)
	if err != nil {
		releaseTracks(release, stream)
		return &Error{Kind: KindEncoder, Op: "start", Err: err}
	}

	r.state = stateRecording
	r.stream = stream
	r.encoding = encoding
	r.release = release
	r.startedAt = r.now()
	r.result, r.resultErr = nil, nil
	r.quit = make(chan struct{})
	r.watchDone = make(chan struct{})

	go r.watch(stream, r.quit, r.watchDone)
	return nil
}

// watch signals done before running OnAutoStop, so the callback may call Stop or Close.
func (r *Recorder) watch(stream Stream, quit <-chan struct{}, done chan<- struct{}) {
	select {
	case <-quit:
		close(done)
		return
	case <-stream.Ended():
	}

	r.mu.Lock()
	if r.state != stateRecording || r.stream != stream {
		r.mu.Unlock()
		close(done)
		return
	}
	r.finishLocked(true)
	rec, err := r.result, r.resultErr
	cb := r.OnAutoStop
	r.mu.Unlock()

	close(done)
	if cb != nil {
		cb(rec, err)
	}
}

// finishLocked finalizes the encoding and releases the tracks. r.mu must be held.
func (r *Recorder) finishLocked(autoEnded bool) {
	data, err := r.encoding.Finish()
	releaseTracks(r.release, r.stream)
	close(r.quit)

	r.state = stateStopped
	if err != nil {
		r.result = nil
		r.resultErr = &Error{Kind: KindEncoder, Op: "stop", Err: err}
		return
	}
	r.result = &Recording{
		Data:      data,
		MIMEType:  r.mimeType,
		Duration:  r.now().Sub(r.startedAt),
		AutoEnded: autoEnded,
	}
	r.resultErr = nil
}

// Stop finalizes the recording and releases the capture. Calling it again returns
// the same result without touching the tracks.
func (r *Recorder) Stop() (*Recording, error) {
	r.mu.Lock()
	switch r.state {
	case stateIdle:
		r.mu.Unlock()
		return nil, ErrNotRecording
	case stateClosed:
		r.mu.Unlock()
		return nil, ErrClosed
	case stateRecording:
		r.finishLocked(false)
	}
	rec, err := r.result, r.resultErr
	done := r.watchDone
	r.mu.Unlock()

	<-done
	return rec, err
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRecording
}

// Close discards an in-flight recording and releases the capture. It is safe to
// call at any time and any number of times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.state == stateClosed {
		r.mu.Unlock()
		return nil
	}
	if r.state == stateRecording {
		r.encoding.Abort()
		close(r.quit)
	}
	if r.stream != nil {
		releaseTracks(r.release, r.stream)
	}
	r.state = stateClosed
	r.result, r.resultErr = nil, nil
	done := r.watchDone
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

func releaseTracks(once *sync.Once, stream Stream) {
	once.Do(func() {
		for _, t := range stream.Tracks() {
			t.Stop()
		}
	})
}
