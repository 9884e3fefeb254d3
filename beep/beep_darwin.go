//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
)

// darwin output latency is lower, shorter ticks sound the same
const tickScale = 0.2

// malgoOut owns one playback device. The data callback drains whichever
// cursor is current; a new cue replaces it.
type malgoOut struct {
	ctx *malgo.AllocatedContext

	mu  sync.Mutex // guards dev
	dev *malgo.Device
	cur atomic.Pointer[cursor]
}

func newPlayer() player {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("beep: %v", err)
		return nil
	}
	m := &malgoOut{ctx: ctx}
	if err := m.open(); err != nil {
		log.Warnf("beep: %v", err)
		ctx.Uninit()
		return nil
	}
	return m
}

func (m *malgoOut) open() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			out = out[:frames*2]
			cur := m.cur.Load()
			if cur == nil {
				clear(out)
				return
			}
			cur.readLE(out)
		},
	})
	if err != nil {
		return err
	}
	m.dev = dev
	return nil
}

func (m *malgoOut) play(pcm []int16) {
	if len(pcm) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev != nil {
		m.dev.Stop()
		m.cur.Store(&cursor{pcm: pcm})
		if err := m.dev.Start(); err == nil {
			return
		}
		// the device goes stale across sleep and wake
		m.dev.Uninit()
		m.dev = nil
	}
	m.cur.Store(&cursor{pcm: pcm})
	if err := m.open(); err != nil {
		log.Warnf("beep: reopen: %v", err)
		m.cur.Store(nil)
		return
	}
	if err := m.dev.Start(); err != nil {
		m.cur.Store(nil)
	}
}
