package encoder

import (
	"errors"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	MIMEFlac = "audio/flac"
	MIMEWav  = "audio/wav"
)

var ErrUnsupported = errors.New("unsupported encoding")

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MIME() string
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// Supported lists the MIME types New can produce, preferred first.
func Supported() []string {
	return []string{MIMEFlac, MIMEWav}
}

func New(mime string) (Encoder, error) {
	switch mime {
	case MIMEFlac:
		return NewFlac()
	case MIMEWav:
		return NewWav(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, mime)
}

// Extension returns the file extension (without dot) for mime.
func Extension(mime string) string {
	switch mime {
	case MIMEFlac:
		return "flac"
	case MIMEWav:
		return "wav"
	}
	return "bin"
}

// Duration converts a frame count at SampleRate into wall time.
func Duration(frames uint64) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
