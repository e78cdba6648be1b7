package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxsml/ubinder/message"
)

// DefaultMaxFrameSize bounds frame bodies when Config.MaxFrameSize is zero.
const DefaultMaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned when a frame exceeds the configured maximum.
var ErrFrameTooLarge = errors.New("wire: frame too large")

// Encoder writes length-prefixed frames: a uvarint body length followed by
// the body produced by the codec. Safe for concurrent use.
type Encoder struct {
	codec Codec
	max   int

	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer, codec Codec, maxFrameSize int) *Encoder {
	if codec == nil {
		codec = BinaryCodec{}
	}
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Encoder{w: w, codec: codec, max: maxFrameSize}
}

// Encode writes msg as one frame.
func (e *Encoder) Encode(msg message.Message) error {
	body, err := e.codec.Encode(msg)
	if err != nil {
		return err
	}
	if len(body) > e.max {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf = binary.AppendUvarint(e.buf[:0], uint64(len(body)))
	e.buf = append(e.buf, body...)
	_, err = e.w.Write(e.buf)
	return err
}

// Decoder reads frames written by an Encoder. Not safe for concurrent use.
type Decoder struct {
	r     *bufio.Reader
	codec Codec
	max   int
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, codec Codec, maxFrameSize int) *Decoder {
	if codec == nil {
		codec = BinaryCodec{}
	}
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{r: bufio.NewReader(r), codec: codec, max: maxFrameSize}
}

// Decode reads the next frame. It returns io.EOF only when the stream ends
// cleanly between frames.
func (d *Decoder) Decode() (message.Message, error) {
	size, err := binary.ReadUvarint(d.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return message.Message{}, io.EOF
		}
		return message.Message{}, fmt.Errorf("wire: read length: %w", err)
	}
	if size > uint64(d.max) {
		return message.Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return message.Message{}, fmt.Errorf("wire: read body: %w", err)
	}
	return d.codec.Decode(body)
}
