package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// FillFunc paints the pixels of frame seq in place
type FillFunc func(seq uint64, data []byte)

// SyntheticSource generates blank (or painted) BGR frames
type SyntheticSource struct {
	width  int
	height int
	limit  int64 // <= 0 means endless
	fill   FillFunc

	mu         sync.Mutex
	seq        uint64
	pos        int64
	copyOnRead bool
	buf        []byte
	closed     bool
}

// NewSyntheticSource creates a source producing limit frames of the given
// size. A limit <= 0 produces frames until closed.
func NewSyntheticSource(width, height int, limit int64, fill FillFunc) *SyntheticSource {
	slog.Info("synthetic stream created",
		"width", width,
		"height", height,
		"limit", limit,
	)
	return &SyntheticSource{
		width:      width,
		height:     height,
		limit:      limit,
		fill:       fill,
		copyOnRead: true,
	}
}

// Read returns the next frame or ErrEndOfStream
func (s *SyntheticSource) Read(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || (s.limit > 0 && s.pos >= s.limit) {
		return types.Frame{}, ErrEndOfStream
	}

	size := s.width * s.height * 3
	data := s.buf
	if s.copyOnRead || len(data) != size {
		data = make([]byte, size)
	} else {
		clear(data)
	}
	if !s.copyOnRead {
		s.buf = data
	}
	if s.fill != nil {
		s.fill(s.seq, data)
	}

	frame := types.Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Width:     s.width,
		Height:    s.height,
		Data:      data,
		FramePos:  s.pos,
		TraceID:   uuid.New().String(),
	}
	s.seq++
	s.pos++
	return frame, nil
}

func (s *SyntheticSource) SetCopyOnRead(v bool) {
	s.mu.Lock()
	s.copyOnRead = v
	s.buf = nil
	s.mu.Unlock()
}

func (s *SyntheticSource) IsLivestream() bool {
	return s.limit <= 0
}

func (s *SyntheticSource) Position() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 0, s.pos
}

// SetStreamIndex is a no-op; the synthetic source has a single stream
func (s *SyntheticSource) SetStreamIndex(int) {}

// SetFramePos skips ahead to pos
func (s *SyntheticSource) SetFramePos(pos int64) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		slog.Info("synthetic stream closed", "frames_emitted", s.seq)
	}
	return nil
}
