//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
)

const tickScale = 1

// pulseOut keeps one client open and plays cues one after another.
type pulseOut struct {
	mu     sync.Mutex
	client *pulse.Client
}

func newPlayer() player { return &pulseOut{} }

func (p *pulseOut) play(pcm []int16) {
	if len(pcm) > 0 {
		go p.drain(pcm)
	}
}

func (p *pulseOut) drain(pcm []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		c, err := pulse.NewClient(pulse.ClientApplicationName("speak-the-words"))
		if err != nil {
			log.Warnf("beep: %v", err)
			return
		}
		p.client = c
	}

	cur := &cursor{pcm: pcm}
	stream, err := p.client.NewPlayback(
		pulse.Int16Reader(func(buf []int16) (int, error) {
			if cur.done() {
				return 0, pulse.EndOfData
			}
			return cur.read(buf), nil
		}),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(s *proto.CreatePlaybackStream) {
			s.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		// the server may have restarted; reconnect on the next cue
		p.client.Close()
		p.client = nil
		return
	}
	stream.Start()
	stream.Drain()
	stream.Close()
}
