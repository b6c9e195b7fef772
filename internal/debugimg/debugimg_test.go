package debugimg

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

func bgrFrame() types.Frame {
	// one blue pixel, one red pixel (BGR order)
	return types.Frame{
		Seq:       7,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Width:     2,
		Height:    1,
		Data:      []byte{255, 0, 0, 0, 0, 255},
	}
}

func TestBGRToRGBA(t *testing.T) {
	img, err := BGRToRGBA(bgrFrame())
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(1, 0))

	_, err = BGRToRGBA(types.Frame{Width: 2, Height: 2, Data: []byte{1}})
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	s, err := NewSaver(t.TempDir(), 1, strings.NewReader(""))
	require.NoError(t, err)

	path, err := s.Snapshot(bgrFrame(), "coin")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "coin_000007_"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	saved, dropped := s.Stats()
	assert.Equal(t, uint64(1), saved)
	assert.Zero(t, dropped)
}

func TestDisplayWaitsForTimeout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSaver(dir, 10, strings.NewReader(""))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.Display(context.Background(), bgrFrame()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.FileExists(t, filepath.Join(dir, "latest.png"))
}

func TestDisplayWaitsForEnter(t *testing.T) {
	s, err := NewSaver(t.TempDir(), 0, strings.NewReader("\n"))
	require.NoError(t, err)
	require.NoError(t, s.Display(context.Background(), bgrFrame()))
}

func TestDisplayCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()

	s, err := NewSaver(t.TempDir(), 0, r)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Display(ctx, bgrFrame()), context.DeadlineExceeded)
}

func TestInvalidFrameCountsDrop(t *testing.T) {
	s, err := NewSaver(t.TempDir(), 1, strings.NewReader(""))
	require.NoError(t, err)

	_, err = s.Snapshot(types.Frame{}, "end")
	assert.Error(t, err)
	_, dropped := s.Stats()
	assert.Equal(t, uint64(1), dropped)
}
