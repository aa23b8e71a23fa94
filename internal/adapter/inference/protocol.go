package inference

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Worker message types.
const (
	msgReady    = "ready"
	msgError    = "error"
	msgGenerate = "generate"
	msgResult   = "result"
)

// maxFrameSize guards against a corrupt length prefix.
const maxFrameSize = 64 << 20

type workerRequest struct {
	Type         string `msgpack:"type"`
	ID           uint64 `msgpack:"id"`
	ModelID      string `msgpack:"model_id"`
	Prompt       string `msgpack:"prompt"`
	Image        string `msgpack:"image"`
	ImageSize    int    `msgpack:"image_size"`
	MaxNewTokens int    `msgpack:"max_new_tokens"`
}

type workerMessage struct {
	Type  string `msgpack:"type"`
	ID    uint64 `msgpack:"id"`
	Text  string `msgpack:"text"`
	Error string `msgpack:"error"`
}

// writeFrame writes a 4-byte big-endian length prefix followed by the
// msgpack encoding of v.
func writeFrame(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}
