package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// fakeProcess answers requests over in-memory pipes with handle
func fakeProcess(t *testing.T, id int, handle func(req request) response) *session {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	go func() {
		defer respW.Close()
		for {
			var req request
			if err := readMessage(reqR, &req); err != nil {
				return
			}
			if err := writeMessage(respW, handle(req)); err != nil {
				return
			}
		}
	}()

	return &session{id: id, in: reqW, out: bufio.NewReader(respR)}
}

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := request{FrameData: []byte{1, 2, 3}, Width: 1, Height: 1, Seq: 9, Mask: 5, Kinds: []string{"A"}}
	require.NoError(t, writeMessage(&buf, in))

	assert.Equal(t, []byte{0, 0, 0}, buf.Bytes()[:3], "length prefix is big-endian")

	var out request
	require.NoError(t, readMessage(&buf, &out))
	assert.Equal(t, in, out)
}

func TestReadMessageRejectsOversize(t *testing.T) {
	r := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	var v response
	assert.Error(t, readMessage(r, &v))
}

func TestProcessRecognizerMapsResults(t *testing.T) {
	var seenMask atomic.Uint32
	spawn := func(id int) (*session, error) {
		return fakeProcess(t, id, func(req request) response {
			seenMask.Store(req.Mask)
			return response{Results: []wireResult{
				{Recognizer: "DRAFT_CARD_PICK", Results: []int{1, 2, 3}},
				{Recognizer: "GAME_END", Results: []int{types.EndVictory}},
				{Recognizer: "NOT_A_KIND", Results: []int{0}},
			}}
		}), nil
	}

	p, err := newPool(spawn, 2)
	require.NoError(t, err)
	defer p.Close()

	armed := types.NewKindSet(types.DraftCardPick)
	frame := types.Frame{Seq: 1, Width: 1, Height: 1, Data: []byte{0, 0, 0}}

	results, err := p.Recognize(context.Background(), frame, armed)
	require.NoError(t, err)
	assert.Equal(t, []types.Result{{Source: types.DraftCardPick, Results: []int{1, 2, 3}}}, results)
	assert.Equal(t, uint32(armed), seenMask.Load())

	calls, failures, _ := p.Stats()
	assert.Equal(t, uint64(1), calls)
	assert.Zero(t, failures)
}

func TestProcessRecognizerSkipsEmptyMask(t *testing.T) {
	p, err := newPool(func(id int) (*session, error) {
		return fakeProcess(t, id, func(request) response {
			t.Error("process should not be called")
			return response{}
		}), nil
	}, 1)
	require.NoError(t, err)
	defer p.Close()

	results, err := p.Recognize(context.Background(), types.Frame{}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessRecognizerRespawnsFailedSession(t *testing.T) {
	var spawned atomic.Int32
	spawn := func(id int) (*session, error) {
		spawned.Add(1)
		if id == 0 {
			// dies on the first request
			reqR, reqW := io.Pipe()
			respR, respW := io.Pipe()
			go func() {
				var req request
				_ = readMessage(reqR, &req)
				respW.Close()
			}()
			return &session{id: id, in: reqW, out: bufio.NewReader(respR)}, nil
		}
		return fakeProcess(t, id, func(request) response {
			return response{Results: []wireResult{{Recognizer: "GAME_COIN", Results: []int{types.CoinFirst}}}}
		}), nil
	}

	p, err := newPool(spawn, 1)
	require.NoError(t, err)
	defer p.Close()

	armed := types.NewKindSet(types.GameCoin)
	_, err = p.Recognize(context.Background(), types.Frame{Seq: 1}, armed)
	require.Error(t, err)

	results, err := p.Recognize(context.Background(), types.Frame{Seq: 2}, armed)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.GameCoin, results[0].Source)
	assert.Equal(t, int32(2), spawned.Load())

	_, failures, _ := p.Stats()
	assert.Equal(t, uint64(1), failures)
}

func TestProcessRecognizerReportsRemoteError(t *testing.T) {
	p, err := newPool(func(id int) (*session, error) {
		return fakeProcess(t, id, func(request) response {
			return response{Error: "model not loaded"}
		}), nil
	}, 1)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Recognize(context.Background(), types.Frame{}, types.NewKindSet(types.GameEnd))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestProcessRecognizerContextCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	p, err := newPool(func(id int) (*session, error) {
		return fakeProcess(t, id, func(request) response {
			<-block
			return response{}
		}), nil
	}, 1)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Recognize(ctx, types.Frame{}, types.NewKindSet(types.GameEnd))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessRecognizerClosed(t *testing.T) {
	p, err := newPool(func(id int) (*session, error) {
		return fakeProcess(t, id, func(request) response { return response{} }), nil
	}, 1)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Recognize(context.Background(), types.Frame{}, types.NewKindSet(types.GameEnd))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestNewProcessRecognizerNeedsCommand(t *testing.T) {
	_, err := NewProcessRecognizer(context.Background(), nil, 1)
	assert.Error(t, err)
}

func TestScript(t *testing.T) {
	r := Script(map[uint64][]types.Result{
		3: {
			{Source: types.GameCoin, Results: []int{types.CoinSecond}},
			{Source: types.GameDraw, Results: []int{12}},
		},
	})

	results, err := r.Recognize(context.Background(), types.Frame{Seq: 3}, types.NewKindSet(types.GameDraw))
	require.NoError(t, err)
	assert.Equal(t, []types.Result{{Source: types.GameDraw, Results: []int{12}}}, results)

	results, err = r.Recognize(context.Background(), types.Frame{Seq: 4}, types.NewKindSet(types.GameDraw))
	require.NoError(t, err)
	assert.Empty(t, results)
}
