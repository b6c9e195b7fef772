package recognizer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message (a 4K BGR frame is ~25MB)
const maxMessageSize = 64 << 20

// request is sent to the recognizer process for every frame
type request struct {
	FrameData []byte   `msgpack:"frame_data"`
	Width     int      `msgpack:"width"`
	Height    int      `msgpack:"height"`
	Seq       uint64   `msgpack:"seq"`
	Mask      uint32   `msgpack:"mask"`
	Kinds     []string `msgpack:"kinds"`
}

// response is the recognizer process answer
type response struct {
	Results     []wireResult `msgpack:"results"`
	InferenceMS float64      `msgpack:"inference_ms"`
	Error       string       `msgpack:"error,omitempty"`
}

type wireResult struct {
	Recognizer string `msgpack:"recognizer"`
	Results    []int  `msgpack:"results"`
}

// writeMessage writes v as msgpack with a 4 byte big-endian length prefix
func writeMessage(w io.Writer, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack message: %w", err)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write msgpack data: %w", err)
	}
	return nil
}

// readMessage reads one length-prefixed msgpack message into v
func readMessage(r io.Reader, v interface{}) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("failed to read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read msgpack data: %w", err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal msgpack message: %w", err)
	}
	return nil
}
