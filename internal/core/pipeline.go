package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/recognizer"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/stream"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// ErrInvalidFrame is returned by a worker whose source yielded an empty frame
var ErrInvalidFrame = errors.New("frame source returned an invalid frame")

// Workers returns the number of workers Run starts
func (m *Manager) Workers() int {
	n := m.opts.Threads
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		slog.Error("unknown amount of cores, using a single worker")
		n = 1
	}
	return n
}

// Run reads frames from src with a pool of workers, recognizes them with
// rec and applies the results. Each worker stops on its own when the
// source ends or fails; Run returns once all workers have stopped. The
// returned error is the first exit cause other than end of stream or
// cancellation.
func (m *Manager) Run(ctx context.Context, src stream.Source, rec recognizer.Recognizer) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline is already running")
	}
	defer m.running.Store(false)

	m.metricsMu.Lock()
	m.started = time.Now()
	m.metricsMu.Unlock()

	if m.opts.SeekStart {
		src.SetStreamIndex(m.opts.StreamIndex)
		src.SetFramePos(m.opts.StreamPos)
	}

	n := m.Workers()
	src.SetCopyOnRead(n > 1)
	slog.Info("starting pipeline", "workers", n, "livestream", src.IsLivestream())

	var (
		g         errgroup.Group
		firstExit sync.Once
	)
	for i := 0; i < n; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			err := m.work(ctx, workerID, src, rec)
			expected := (errors.Is(err, stream.ErrEndOfStream) && !src.IsLivestream()) || ctx.Err() != nil
			logged := false
			firstExit.Do(func() {
				logged = true
				if expected {
					slog.Info("first worker stopped", "worker_id", workerID, "reason", err)
					return
				}
				slog.Error("an error occurred while reading a frame", "worker_id", workerID, "error", err)
			})
			if !logged {
				slog.Info("worker stopped", "worker_id", workerID, "reason", err)
			}
			if expected {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	slog.Info("pipeline stopped")
	return err
}

// work is the loop of a single worker
func (m *Manager) work(ctx context.Context, workerID string, src stream.Source, rec recognizer.Recognizer) error {
	slog.Info("started worker", "worker_id", workerID)
	metrics := m.workerMetrics(workerID)

	for {
		frame, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if !frame.Valid() {
			return ErrInvalidFrame
		}

		if m.opts.DebugLevel&DebugDisplay != 0 && m.deps.Images != nil {
			if err := m.deps.Images.Display(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("failed to display frame", "worker_id", workerID, "error", err)
			}
		}

		start := time.Now()
		results, err := rec.Recognize(ctx, frame, m.Armed())
		elapsed := time.Since(start)

		if m.opts.DebugLevel&DebugTiming != 0 {
			if src.IsLivestream() {
				slog.Info("processed frame", "worker_id", workerID, "elapsed_ms", elapsed.Milliseconds())
			} else {
				slog.Info("processed frame",
					"worker_id", workerID,
					"frame_pos", frame.FramePos,
					"stream_index", frame.StreamIndex,
					"elapsed_ms", elapsed.Milliseconds(),
				)
			}
		}

		if err != nil {
			if errors.Is(err, recognizer.ErrClosed) || ctx.Err() != nil {
				return err
			}
			m.recordFrame(metrics, elapsed, 0, true)
			slog.Warn("recognition failed",
				"worker_id", workerID,
				"frame_seq", frame.Seq,
				"trace_id", frame.TraceID,
				"error", err,
			)
			m.passedFrames.Add(1)
			continue
		}

		applied := m.ProcessFrame(frame, results)
		m.recordFrame(metrics, elapsed, applied, false)
	}
}

func (m *Manager) workerMetrics(workerID string) *types.WorkerMetrics {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	wm := &types.WorkerMetrics{LastSeenAt: time.Now()}
	m.workers[workerID] = wm
	return wm
}

func (m *Manager) recordFrame(wm *types.WorkerMetrics, elapsed time.Duration, applied int, failed bool) {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()

	wm.FramesProcessed++
	wm.ResultsApplied += uint64(applied)
	if failed {
		wm.RecognizeErrors++
	}
	ms := float64(elapsed.Microseconds()) / 1000
	// running mean
	wm.AvgLatencyMS += (ms - wm.AvgLatencyMS) / float64(wm.FramesProcessed)
	wm.LastSeenAt = time.Now()
}

// WorkerMetrics returns a copy of the per-worker metrics
func (m *Manager) WorkerMetrics() map[string]types.WorkerMetrics {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	out := make(map[string]types.WorkerMetrics, len(m.workers))
	for id, wm := range m.workers {
		out[id] = *wm
	}
	return out
}
