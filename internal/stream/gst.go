package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrPipeline wraps errors posted on a pipeline bus
var ErrPipeline = errors.New("pipeline error")

const pullTimeout = 100 * time.Millisecond

// GstConfig configures a GstSource
type GstConfig struct {
	Sources    []string // URIs or file paths, played back to back
	Width      int
	Height     int
	Livestream bool
}

// GstSource decodes one or more videos with GStreamer
//
// Pipeline per source:
//
//	uridecodebin → videoconvert → videoscale → capsfilter(BGR) → appsink
type GstSource struct {
	cfg GstConfig

	readMu     sync.Mutex // serializes pulls
	index      int
	startPos   int64
	pos        int64
	seq        uint64
	copyOnRead bool
	buf        []byte
	err        error // sticky once a pipeline fails

	// bus monitor of the current pipeline
	busErr    chan error
	busCancel context.CancelFunc
	busDone   chan struct{}

	pipeMu   sync.Mutex
	pipeline *gst.Pipeline
	sink     *app.Sink

	closed atomic.Bool
}

// NewGstSource creates a source. No pipeline is built until the first Read.
func NewGstSource(cfg GstConfig) (*GstSource, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}

	gst.Init(nil)

	return &GstSource{cfg: cfg, copyOnRead: true}, nil
}

// pipelineDescription builds the gst-launch description for uri
func pipelineDescription(uri string, width, height int, live bool) string {
	sink := "appsink name=sink sync=false max-buffers=4"
	if live {
		sink = "appsink name=sink sync=false max-buffers=1 drop=true"
	}
	return fmt.Sprintf(
		"uridecodebin uri=%s ! videoconvert ! videoscale ! video/x-raw,format=BGR,width=%d,height=%d ! %s",
		toURI(uri), width, height, sink,
	)
}

func toURI(source string) string {
	if strings.Contains(source, "://") {
		return source
	}
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return "file://" + source
}

// open builds and starts the pipeline for the current index.
// Caller holds readMu.
func (s *GstSource) open() error {
	uri := s.cfg.Sources[s.index]
	desc := pipelineDescription(uri, s.cfg.Width, s.cfg.Height, s.cfg.Livestream)

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return fmt.Errorf("failed to create pipeline for %s: %w", uri, err)
	}

	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("failed to find appsink: %w", err)
	}
	sink := app.SinkFromElement(elem)

	s.pipeMu.Lock()
	if s.closed.Load() {
		s.pipeMu.Unlock()
		return ErrEndOfStream
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		s.pipeMu.Unlock()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	s.pipeline = pipeline
	s.sink = sink
	s.pipeMu.Unlock()

	busCtx, cancel := context.WithCancel(context.Background())
	s.busErr = make(chan error, 1)
	s.busCancel = cancel
	s.busDone = make(chan struct{})
	go monitorBus(busCtx, pipeline, uri, s.busErr, s.busDone)

	slog.Info("stream: source opened",
		"index", s.index,
		"uri", uri,
		"width", s.cfg.Width,
		"height", s.cfg.Height,
	)

	s.pos = 0
	for s.pos < s.startPos {
		if sample := sink.TryPullSample(pullTimeout); sample == nil {
			if sink.IsEOS() || s.closed.Load() || len(s.busErr) > 0 {
				break
			}
			continue
		}
		s.pos++
	}
	s.startPos = 0
	return nil
}

// monitorBus watches the pipeline bus until ctx ends or an error is posted.
// The error is delivered on errs.
func monitorBus(ctx context.Context, pipeline *gst.Pipeline, uri string, errs chan<- error, done chan<- struct{}) {
	defer close(done)
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("stream: pipeline error",
				"uri", uri,
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			errs <- fmt.Errorf("%w: %s: %s", ErrPipeline, uri, gerr.Error())
			return

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			slog.Warn("stream: pipeline warning", "uri", uri, "warning", gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("stream: pipeline state changed", "from", old, "to", new)
			}
		}
	}
}

// teardown stops the current pipeline and its bus monitor. Caller holds
// readMu.
func (s *GstSource) teardown() {
	if s.busCancel != nil {
		s.busCancel()
		<-s.busDone
		s.busCancel = nil
	}

	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()
	if s.pipeline != nil {
		if err := s.pipeline.SetState(gst.StateNull); err != nil {
			slog.Warn("stream: failed to stop pipeline", "error", err)
		}
	}
	s.pipeline = nil
	s.sink = nil
}

// Read pulls the next frame, moving to the next source at end of stream
func (s *GstSource) Read(ctx context.Context) (types.Frame, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return types.Frame{}, err
		}
		if s.err != nil {
			return types.Frame{}, s.err
		}
		if s.closed.Load() || s.index >= len(s.cfg.Sources) {
			s.teardown()
			return types.Frame{}, ErrEndOfStream
		}

		if s.sink == nil {
			if err := s.open(); err != nil {
				return types.Frame{}, err
			}
		}

		sample := s.sink.TryPullSample(pullTimeout)
		if sample == nil {
			select {
			case err := <-s.busErr:
				s.err = fmt.Errorf("source %d failed: %w", s.index, err)
				s.teardown()
				return types.Frame{}, s.err
			default:
			}
			if !s.sink.IsEOS() {
				// timed out; the loop rechecks ctx and Close
				continue
			}
			slog.Info("stream: source finished", "index", s.index, "frames", s.pos)
			s.teardown()
			s.index++
			continue
		}

		buffer := sample.GetBuffer()
		if buffer == nil {
			slog.Warn("stream: sample without buffer, skipping")
			continue
		}

		mapInfo := buffer.Map(gst.MapRead)
		data := mapInfo.Bytes()
		if len(data) == 0 {
			buffer.Unmap()
			slog.Warn("stream: empty buffer received")
			continue
		}

		dst := s.buf
		if s.copyOnRead || len(dst) != len(data) {
			dst = make([]byte, len(data))
		}
		copy(dst, data)
		buffer.Unmap()
		if !s.copyOnRead {
			s.buf = dst
		}

		frame := types.Frame{
			Seq:         s.seq,
			Timestamp:   time.Now(),
			Width:       s.cfg.Width,
			Height:      s.cfg.Height,
			Data:        dst,
			StreamIndex: s.index,
			FramePos:    s.pos,
			TraceID:     uuid.New().String(),
		}
		s.seq++
		s.pos++
		return frame, nil
	}
}

func (s *GstSource) SetCopyOnRead(v bool) {
	s.readMu.Lock()
	s.copyOnRead = v
	s.buf = nil
	s.readMu.Unlock()
}

func (s *GstSource) IsLivestream() bool {
	return s.cfg.Livestream
}

func (s *GstSource) Position() (int, int64) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	return s.index, s.pos
}

func (s *GstSource) SetStreamIndex(i int) {
	s.readMu.Lock()
	if s.sink == nil && i >= 0 {
		s.index = i
	}
	s.readMu.Unlock()
}

func (s *GstSource) SetFramePos(pos int64) {
	s.readMu.Lock()
	if s.sink == nil && pos >= 0 {
		s.startPos = pos
	}
	s.readMu.Unlock()
}

// Close stops the active pipeline, unblocking a pending Read
func (s *GstSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()
	if s.pipeline != nil {
		if err := s.pipeline.SetState(gst.StateNull); err != nil {
			return fmt.Errorf("failed to stop pipeline: %w", err)
		}
	}
	slog.Info("stream: closed")
	return nil
}
