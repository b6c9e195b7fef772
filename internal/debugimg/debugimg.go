// Package debugimg writes frames to disk for debugging: labelled snapshots
// of key events and a "display" of the frame currently being processed.
package debugimg

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// Saver writes frames as PNG files into a directory. Safe for concurrent use.
type Saver struct {
	dir      string
	waitTime time.Duration // 0 waits for a line on input
	input    *bufio.Reader

	displayMu sync.Mutex // one display at a time

	saved   atomic.Uint64
	dropped atomic.Uint64
}

// NewSaver creates dir if needed. waitKeyMS is how long Display pauses;
// 0 waits until a line is read from input (typically os.Stdin).
func NewSaver(dir string, waitKeyMS int, input io.Reader) (*Saver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug image directory: %w", err)
	}
	if input == nil {
		input = os.Stdin
	}
	return &Saver{
		dir:      dir,
		waitTime: time.Duration(waitKeyMS) * time.Millisecond,
		input:    bufio.NewReader(input),
	}, nil
}

// Snapshot saves frame as <label>_<seq>.png and returns the path
func (s *Saver) Snapshot(frame types.Frame, label string) (string, error) {
	name := fmt.Sprintf("%s_%06d_%s.png", label, frame.Seq, frame.Timestamp.Format("20060102_150405.000"))
	path := filepath.Join(s.dir, name)
	if err := s.write(frame, path); err != nil {
		return "", err
	}
	slog.Debug("debug snapshot saved", "path", path, "frame_seq", frame.Seq)
	return path, nil
}

// Display overwrites latest.png with frame and pauses the caller
func (s *Saver) Display(ctx context.Context, frame types.Frame) error {
	s.displayMu.Lock()
	defer s.displayMu.Unlock()

	if err := s.write(frame, filepath.Join(s.dir, "latest.png")); err != nil {
		return err
	}

	if s.waitTime > 0 {
		select {
		case <-time.After(s.waitTime):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.input.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		if err == io.EOF {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) write(frame types.Frame, path string) error {
	img, err := BGRToRGBA(frame)
	if err != nil {
		s.dropped.Add(1)
		return err
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		s.dropped.Add(1)
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		os.Remove(tmp)
		s.dropped.Add(1)
		return fmt.Errorf("PNG encode failed: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		s.dropped.Add(1)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		s.dropped.Add(1)
		return err
	}

	s.saved.Add(1)
	return nil
}

// Stats returns saved and dropped image counts
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.saved.Load(), s.dropped.Load()
}

// BGRToRGBA converts a BGR24 frame to an opaque RGBA image
func BGRToRGBA(frame types.Frame) (*image.RGBA, error) {
	expected := frame.Width * frame.Height * 3
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != expected {
		return nil, fmt.Errorf("invalid BGR data size: got %d, expected %d", len(frame.Data), expected)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		img.Pix[i*4+0] = frame.Data[i*3+2]
		img.Pix[i*4+1] = frame.Data[i*3+1]
		img.Pix[i*4+2] = frame.Data[i*3+0]
		img.Pix[i*4+3] = 255
	}
	return img, nil
}
