package types

import "time"

// Frame represents a single decoded video frame
type Frame struct {
	// Seq is the monotonic sequence number across all sources
	Seq uint64
	// Timestamp is when the frame was decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the frame data (BGR24, 3 bytes per pixel)
	Data []byte
	// StreamIndex identifies which configured source produced the frame
	StreamIndex int
	// FramePos is the position of the frame inside its source
	FramePos int64
	// TraceID is a unique identifier for tracing a frame through the pipeline
	TraceID string
}

// Valid reports whether the frame carries pixel data
func (f *Frame) Valid() bool {
	return len(f.Data) > 0 && f.Width > 0 && f.Height > 0
}

// WorkerMetrics contains health metrics for a pipeline worker
type WorkerMetrics struct {
	FramesProcessed uint64    `json:"frames_processed"`
	ResultsApplied  uint64    `json:"results_applied"`
	RecognizeErrors uint64    `json:"recognize_errors"`
	AvgLatencyMS    float64   `json:"avg_latency_ms"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}
