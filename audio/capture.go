package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
)

// Export is the payload of an export-file event: one turn's audio.
type Export struct {
	MIME         string
	Data         []byte
	ContentID    string
	SubContentID string
	Duration     time.Duration
}

type CoordinatorConfig struct {
	Context      Context
	Device       *DeviceInfo
	Probe        Probe
	ContentID    string
	SubContentID string
}

// recording is one capture session. Chunks arriving after stopped is set
// belong to no session and are dropped.
type recording struct {
	chunks  [][]byte
	stopped bool
}

// Coordinator records audio between start-listening and stop-all-media
// and publishes the result as export-file. A turn-abandoned event ends the
// session without exporting it. Capture is best effort: any failure leaves
// the turn without audio.
type Coordinator struct {
	cfg     CoordinatorConfig
	mime    string
	enabled bool
	bus     *eventbus.Bus
	unsubs  []func()

	lifeMu  sync.Mutex // serializes Start/Stop/Close
	capture CaptureDevice

	mu  sync.Mutex // guards rec and its chunks
	rec *recording
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{cfg: cfg}
	c.mime, c.enabled = Negotiate(cfg.Probe)
	if c.enabled {
		log.Info(fmt.Sprintf("audio capture enabled: %s", c.mime))
	} else {
		log.Warn("audio capture disabled: no usable device or encoding")
	}
	return c
}

func (c *Coordinator) Enabled() bool { return c.enabled }

// MIME is the negotiated encoding, empty when capture is disabled.
func (c *Coordinator) MIME() string { return c.mime }

func (c *Coordinator) Attach(bus *eventbus.Bus) {
	c.bus = bus
	c.unsubs = append(c.unsubs,
		bus.Subscribe(eventbus.StartListening, func(any) { c.Start() }),
		bus.Subscribe(eventbus.StopAllMedia, func(any) { c.Stop() }),
		bus.Subscribe(eventbus.TurnAbandoned, func(any) { c.Discard() }),
	)
}

// Recording reports whether a session is active.
func (c *Coordinator) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec != nil
}

// Start begins a session unless one is active or capture is disabled.
func (c *Coordinator) Start() {
	if !c.enabled {
		return
	}
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	active := c.rec != nil
	c.mu.Unlock()
	if active {
		return
	}

	if c.capture == nil {
		dev, err := c.cfg.Context.NewCapture(c.cfg.Device, DefaultConfig())
		if err != nil {
			log.Warnf("audio capture unavailable: %v", err)
			return
		}
		c.capture = dev
	}

	rec := &recording{}
	c.capture.SetCallback(func(data []byte, _ uint32) {
		c.appendChunk(rec, data)
	})
	if err := c.capture.Start(); err != nil {
		c.capture.ClearCallback()
		log.Warnf("audio capture start failed: %v", err)
		return
	}

	c.mu.Lock()
	c.rec = rec
	c.mu.Unlock()
}

func (c *Coordinator) appendChunk(rec *recording, data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.stopped || c.rec != rec {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	rec.chunks = append(rec.chunks, chunk)
}

// Stop ends the active session, if any, and exports it. Calling it with
// no active session does nothing.
func (c *Coordinator) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if chunks, ok := c.end(); ok {
		c.export(chunks)
	}
}

// Discard ends the active session, if any, and drops its audio.
func (c *Coordinator) Discard() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if chunks, ok := c.end(); ok {
		log.Debugf("audio capture: turn abandoned, %d chunks dropped", len(chunks))
	}
}

// end detaches the active recording and stops the device. ok is false
// when nothing was active. Callers hold lifeMu.
func (c *Coordinator) end() (chunks [][]byte, ok bool) {
	c.mu.Lock()
	rec := c.rec
	if rec == nil {
		c.mu.Unlock()
		return nil, false
	}
	rec.stopped = true
	c.rec = nil
	chunks = rec.chunks
	rec.chunks = nil
	c.mu.Unlock()

	c.capture.Stop()
	c.capture.ClearCallback()
	return chunks, true
}

func (c *Coordinator) export(chunks [][]byte) {
	if c.bus == nil || c.bus.Subscribers(eventbus.ExportFile) == 0 {
		return
	}
	if len(chunks) == 0 {
		log.Debugf("audio capture: empty session, nothing to export")
		return
	}

	exp, err := assemble(chunks, c.mime)
	if err != nil {
		log.Warnf("audio export failed: %v", err)
		return
	}
	exp.ContentID = c.cfg.ContentID
	exp.SubContentID = c.cfg.SubContentID
	log.Export(exp.MIME, float64(len(exp.Data))/1024, exp.Duration.Seconds())
	c.bus.Publish(eventbus.ExportFile, exp)
}

// Close stops any session, detaches from the bus and releases the device.
func (c *Coordinator) Close() {
	c.Stop()
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
	}
}

// assemble joins little-endian 16-bit chunks and encodes them as mime.
// A trailing odd byte, split across chunks or not, is dropped.
func assemble(chunks [][]byte, mime string) (Export, error) {
	enc, err := encoder.New(mime)
	if err != nil {
		return Export{}, err
	}

	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	pcm := make([]byte, 0, total)
	for _, ch := range chunks {
		pcm = append(pcm, ch...)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	for i := 0; i < len(samples); i += encoder.BlockSize {
		end := min(i+encoder.BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return Export{}, err
		}
	}
	if err := enc.Close(); err != nil {
		return Export{}, err
	}

	return Export{
		MIME:     mime,
		Data:     enc.Bytes(),
		Duration: encoder.Duration(enc.TotalFrames()),
	}, nil
}
