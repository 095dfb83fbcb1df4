package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegSource captures the desktop with ffmpeg into a webm file. It is both the
// Source and the Encoder, since ffmpeg does both in one process.
type FFmpegSource struct {
	TempDir string
	// Binary overrides the ffmpeg executable, mostly for tests.
	Binary string
	// StopTimeout bounds how long a graceful quit may take before the process is killed.
	StopTimeout time.Duration
}

func NewFFmpegSource() *FFmpegSource {
	return &FFmpegSource{TempDir: os.TempDir(), StopTimeout: 10 * time.Second}
}

func (s *FFmpegSource) MIMEType() string { return "video/webm" }

// captureInputs picks the platform grabber. Audio is only wired where ffmpeg has
// a default device name for it.
func captureInputs(goos string, opts Options) []*ffmpeg.Stream {
	fps := strconv.Itoa(opts.FrameRate)
	if opts.FrameRate <= 0 {
		fps = "15"
	}

	var video, audio *ffmpeg.Stream
	switch goos {
	case "darwin":
		display := opts.Display
		if display == "" {
			display = "1"
		}
		device := display
		if opts.Audio {
			device += ":0"
		}
		video = ffmpeg.Input(device, ffmpeg.KwArgs{"f": "avfoundation", "framerate": fps, "capture_cursor": "1"})
	case "windows":
		video = ffmpeg.Input("desktop", ffmpeg.KwArgs{"f": "gdigrab", "framerate": fps})
		if opts.Audio {
			audio = ffmpeg.Input("audio=default", ffmpeg.KwArgs{"f": "dshow"})
		}
	default:
		display := opts.Display
		if display == "" {
			display = os.Getenv("DISPLAY")
		}
		if display == "" {
			display = ":0"
		}
		video = ffmpeg.Input(display, ffmpeg.KwArgs{"f": "x11grab", "framerate": fps})
		if opts.Audio {
			audio = ffmpeg.Input("default", ffmpeg.KwArgs{"f": "pulse"})
		}
	}

	if audio == nil {
		return []*ffmpeg.Stream{video}
	}
	return []*ffmpeg.Stream{video, audio}
}

func buildCommand(goos, output string, opts Options) *exec.Cmd {
	return ffmpeg.Output(captureInputs(goos, opts), output, ffmpeg.KwArgs{
		"c:v":      "libvpx-vp9",
		"deadline": "realtime",
		"cpu-used": "8",
		"b:v":      "1M",
		"f":        "webm",
	}).OverWriteOutput().Compile()
}

// permissionMarkers are stderr fragments ffmpeg prints when the OS refuses capture.
var permissionMarkers = []string{
	"permission denied",
	"not authorized",
	"can't open display",
	"cannot open display",
	"operation not permitted",
}

func classifyStartError(stderr string, err error) error {
	lower := strings.ToLower(stderr)
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
		}
	}
	if stderr != "" {
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr))
	}
	return err
}

func (s *FFmpegSource) Acquire(ctx context.Context, opts Options) (Stream, error) {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.TempDir, "screen-*.webm")
	if err != nil {
		return nil, err
	}
	output := f.Name()
	f.Close()

	cmd := buildCommand(runtime.GOOS, output, opts)
	if s.Binary != "" {
		cmd.Path = s.Binary
		cmd.Args[0] = s.Binary
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(output)
		return nil, err
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		os.Remove(output)
		return nil, classifyStartError("", err)
	}

	st := &ffmpegStream{
		cmd:     cmd,
		stdin:   stdin,
		stderr:  stderr,
		output:  output,
		timeout: s.StopTimeout,
		ended:   make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go st.wait()

	// ffmpeg refuses a display within a moment of starting
	select {
	case <-st.exited:
		os.Remove(output)
		return nil, classifyStartError(stderr.String(), st.waitErr)
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		st.kill()
		os.Remove(output)
		return nil, ctx.Err()
	}

	st.tracks = []Track{&ffmpegTrack{kind: TrackVideo, stream: st}}
	if opts.Audio {
		st.tracks = append(st.tracks, &ffmpegTrack{kind: TrackAudio, stream: st})
	}
	return st, nil
}

func (s *FFmpegSource) Begin(stream Stream) (Encoding, error) {
	st, ok := stream.(*ffmpegStream)
	if !ok {
		return nil, errors.New("ffmpeg encoder needs an ffmpeg capture stream")
	}
	return st, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type ffmpegStream struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *lockedBuffer
	output  string
	timeout time.Duration
	tracks  []Track

	stopping  sync.Once
	endedOnce sync.Once
	ended     chan struct{}
	exited    chan struct{}
	waitErr   error
	requested bool
	mu        sync.Mutex
}

func (s *ffmpegStream) wait() {
	s.waitErr = s.cmd.Wait()
	close(s.exited)

	s.mu.Lock()
	requested := s.requested
	s.mu.Unlock()
	if !requested {
		s.endedOnce.Do(func() { close(s.ended) })
	}
}

func (s *ffmpegStream) Tracks() []Track        { return s.tracks }
func (s *ffmpegStream) Ended() <-chan struct{} { return s.ended }

// quit asks ffmpeg to finish the file, then kills it if it does not exit in time.
func (s *ffmpegStream) quit() {
	s.stopping.Do(func() {
		s.mu.Lock()
		s.requested = true
		s.mu.Unlock()

		io.WriteString(s.stdin, "q")
		s.stdin.Close()

		timeout := s.timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		select {
		case <-s.exited:
		case <-time.After(timeout):
			s.kill()
			<-s.exited
		}
	})
}

func (s *ffmpegStream) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

func (s *ffmpegStream) Finish() ([]byte, error) {
	s.quit()
	defer os.Remove(s.output)

	data, err := os.ReadFile(s.output)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, classifyStartError(s.stderr.String(), errors.New("ffmpeg produced no output"))
	}
	return data, nil
}

func (s *ffmpegStream) Abort() {
	s.quit()
	os.Remove(s.output)
}

type ffmpegTrack struct {
	kind   TrackKind
	stream *ffmpegStream
}

func (t *ffmpegTrack) Kind() TrackKind { return t.kind }

// Stop ends the capture process; tracks share it, so this is idempotent.
func (t *ffmpegTrack) Stop() { t.stream.quit() }

// OutputName is the file name used when a recording is uploaded.
func OutputName(rec *Recording) string {
	ext := ".webm"
	if rec != nil && rec.MIMEType == "video/mp4" {
		ext = ".mp4"
	}
	return "screen-recording" + ext
}
