package audio

import (
	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
)

// Probe reports what the platform can record and encode.
type Probe interface {
	CaptureAvailable() bool
	// ReportsCodecs is false when the platform cannot say which
	// containers it supports.
	ReportsCodecs() bool
	Supports(mime string) bool
}

// Negotiate picks the export encoding once. It prefers FLAC, falls back
// to device-native WAV when codec support is unknown but capture works,
// and otherwise reports ok=false: capture is disabled.
func Negotiate(p Probe) (mime string, ok bool) {
	if p == nil || !p.CaptureAvailable() {
		return "", false
	}
	if !p.ReportsCodecs() {
		return encoder.MIMEWav, true
	}
	if p.Supports(encoder.MIMEFlac) {
		return encoder.MIMEFlac, true
	}
	return "", false
}

type platformProbe struct {
	ctx Context
}

// NewProbe inspects ctx. A nil ctx means no audio subsystem.
func NewProbe(ctx Context) Probe {
	return &platformProbe{ctx: ctx}
}

func (p *platformProbe) CaptureAvailable() bool {
	if p.ctx == nil {
		return false
	}
	devices, err := p.ctx.Devices()
	if err != nil {
		log.Warnf("audio probe: %v", err)
		return false
	}
	return len(devices) > 0
}

func (p *platformProbe) ReportsCodecs() bool { return true }

func (p *platformProbe) Supports(mime string) bool {
	for _, m := range encoder.Supported() {
		if m == mime {
			return true
		}
	}
	return false
}

// FakeProbe answers from its fields.
type FakeProbe struct {
	Capture bool
	Codecs  bool
	MIMEs   []string
}

func (f FakeProbe) CaptureAvailable() bool { return f.Capture }
func (f FakeProbe) ReportsCodecs() bool    { return f.Codecs }

func (f FakeProbe) Supports(mime string) bool {
	for _, m := range f.MIMEs {
		if m == mime {
			return true
		}
	}
	return false
}
