package recognizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// session is one recognizer process (or any peer speaking the framed
// protocol) serving one request at a time
type session struct {
	id  int
	in  io.WriteCloser
	out *bufio.Reader
	cmd *exec.Cmd
}

func (s *session) roundTrip(req *request) (*response, error) {
	if err := writeMessage(s.in, req); err != nil {
		return nil, err
	}
	var resp response
	if err := readMessage(s.out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *session) close() {
	if s.in != nil {
		s.in.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// spawnFunc starts session id
type spawnFunc func(id int) (*session, error)

// ProcessRecognizer is a pool of recognizer processes. Concurrent Recognize
// calls borrow distinct processes; a process that fails is discarded and
// respawned on its next use.
type ProcessRecognizer struct {
	spawn spawnFunc
	idle  chan *session // nil entries are slots waiting for a respawn
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	nextID int

	calls          atomic.Uint64
	failures       atomic.Uint64
	totalLatencyUS atomic.Uint64
}

// NewProcessRecognizer starts size processes running command. Processes are
// killed when ctx is cancelled or Close is called.
func NewProcessRecognizer(ctx context.Context, command []string, size int) (*ProcessRecognizer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("recognizer command is required")
	}
	spawn := func(id int) (*session, error) {
		return spawnProcess(ctx, command, id)
	}

	p, err := newPool(spawn, size)
	if err != nil {
		return nil, err
	}

	slog.Info("recognizer pool started",
		"command", strings.Join(command, " "),
		"size", size,
	)
	return p, nil
}

func newPool(spawn spawnFunc, size int) (*ProcessRecognizer, error) {
	if size < 1 {
		size = 1
	}
	p := &ProcessRecognizer{
		spawn: spawn,
		idle:  make(chan *session, size),
		done:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		s, err := p.newSession()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- s
	}
	return p, nil
}

func (p *ProcessRecognizer) newSession() (*session, error) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.mu.Unlock()
	return p.spawn(id)
}

// Recognize sends frame to an idle process and waits for its answer
func (p *ProcessRecognizer) Recognize(ctx context.Context, frame types.Frame, armed types.KindSet) ([]types.Result, error) {
	if armed == 0 {
		return nil, nil
	}

	var s *session
	select {
	case s = <-p.idle:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.isClosed() {
		p.release(s)
		return nil, ErrClosed
	}

	if s == nil {
		var err error
		if s, err = p.newSession(); err != nil {
			p.release(nil)
			p.failures.Add(1)
			return nil, fmt.Errorf("failed to respawn recognizer: %w", err)
		}
	}

	start := time.Now()
	resp, err := p.exchange(ctx, s, &request{
		FrameData: frame.Data,
		Width:     frame.Width,
		Height:    frame.Height,
		Seq:       frame.Seq,
		Mask:      uint32(armed),
		Kinds:     kindNames(armed),
	})
	if err != nil {
		s.close()
		p.release(nil)
		p.failures.Add(1)
		return nil, fmt.Errorf("recognizer %d: %w", s.id, err)
	}
	p.release(s)

	p.calls.Add(1)
	p.totalLatencyUS.Add(uint64(time.Since(start).Microseconds()))

	if resp.Error != "" {
		return nil, fmt.Errorf("recognizer %d reported: %s", s.id, resp.Error)
	}
	return toResults(resp.Results, armed, frame.Seq), nil
}

// exchange runs one round trip, abandoning the session if ctx ends first
func (p *ProcessRecognizer) exchange(ctx context.Context, s *session, req *request) (*response, error) {
	type answer struct {
		resp *response
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		resp, err := s.roundTrip(req)
		done <- answer{resp, err}
	}()

	select {
	case a := <-done:
		return a.resp, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ProcessRecognizer) release(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if s != nil {
			s.close()
		}
		return
	}
	p.idle <- s
}

func (p *ProcessRecognizer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns completed calls, failures and average latency
func (p *ProcessRecognizer) Stats() (calls, failures uint64, avgLatency time.Duration) {
	calls = p.calls.Load()
	failures = p.failures.Load()
	if calls > 0 {
		avgLatency = time.Duration(p.totalLatencyUS.Load()/calls) * time.Microsecond
	}
	return calls, failures, avgLatency
}

// Close terminates idle processes; borrowed ones are terminated on return
func (p *ProcessRecognizer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	for {
		select {
		case s := <-p.idle:
			if s != nil {
				s.close()
			}
		default:
			slog.Info("recognizer pool stopped", "calls", p.calls.Load(), "failures", p.failures.Load())
			return nil
		}
	}
}

func kindNames(armed types.KindSet) []string {
	kinds := armed.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

func toResults(wire []wireResult, armed types.KindSet, seq uint64) []types.Result {
	out := make([]types.Result, 0, len(wire))
	for _, w := range wire {
		kind, err := types.ParseKind(w.Recognizer)
		if err != nil {
			slog.Warn("recognizer returned unknown kind", "recognizer", w.Recognizer, "frame_seq", seq)
			continue
		}
		if !armed.Has(kind) {
			continue
		}
		out = append(out, types.Result{Source: kind, Results: w.Results})
	}
	return out
}

// spawnProcess starts command with stdin/stdout framing and stderr logging
func spawnProcess(ctx context.Context, command []string, id int) (*session, error) {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recognizer process: %w", err)
	}

	slog.Info("recognizer process spawned", "recognizer_id", id, "pid", cmd.Process.Pid)

	go logStderr(id, stderr)
	go waitProcess(ctx, id, cmd)

	return &session{
		id:  id,
		in:  stdin,
		out: bufio.NewReader(stdout),
		cmd: cmd,
	}, nil
}

// logStderr maps the process log level markers onto slog levels
func logStderr(id int, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			slog.Error("recognizer process error", "recognizer_id", id, "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			slog.Warn("recognizer process warning", "recognizer_id", id, "log", line)
		default:
			slog.Debug("recognizer process log", "recognizer_id", id, "log", line)
		}
	}
}

func waitProcess(ctx context.Context, id int, cmd *exec.Cmd) {
	err := cmd.Wait()
	switch {
	case err == nil:
		slog.Info("recognizer process exited cleanly", "recognizer_id", id, "pid", cmd.Process.Pid)
	case ctx.Err() != nil:
		slog.Debug("recognizer process exited (shutdown)", "recognizer_id", id, "pid", cmd.Process.Pid)
	default:
		slog.Error("recognizer process exited unexpectedly",
			"recognizer_id", id,
			"pid", cmd.Process.Pid,
			"error", err,
		)
	}
}
