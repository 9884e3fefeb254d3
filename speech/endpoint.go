package speech

import (
	"encoding/binary"
	"math"
	"time"
)

// EndpointConfig tunes end-of-utterance detection. Durations are rounded
// down to whole ticks.
type EndpointConfig struct {
	Tick            time.Duration
	Threshold       float64       // normalized RMS above which a tick counts as speech
	Onset           time.Duration // speech needed within the onset window to start an utterance
	TrailingSilence time.Duration // silence after speech that ends the utterance
	NoInput         time.Duration // give up when nobody speaks this long
	MaxUtterance    time.Duration
}

func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		Tick:            100 * time.Millisecond,
		Threshold:       0.02,
		Onset:           300 * time.Millisecond,
		TrailingSilence: 1200 * time.Millisecond,
		NoInput:         8 * time.Second,
		MaxUtterance:    15 * time.Second,
	}
}

type EndpointEvent int

const (
	EndpointNone         EndpointEvent = iota
	EndpointSpeechStart                // first sustained speech
	EndpointUtteranceEnd               // trailing silence after speech
	EndpointNoInput                    // nothing said before the timeout
	EndpointMaxLength                  // utterance ran too long
)

func (e EndpointEvent) String() string {
	switch e {
	case EndpointSpeechStart:
		return "speech_start"
	case EndpointUtteranceEnd:
		return "utterance_end"
	case EndpointNoInput:
		return "no_input"
	case EndpointMaxLength:
		return "max_length"
	}
	return "none"
}

type endpointMonitor struct {
	onsetSz  int
	trailAt  int
	noInput  int
	maxTicks int

	ticks      int
	window     []bool // last onsetSz ticks
	started    bool
	startTick  int
	silentRun  int
	terminated bool
}

func newEndpointMonitor(cfg EndpointConfig) *endpointMonitor {
	ticks := func(d time.Duration) int {
		return max(1, int(d/cfg.Tick))
	}
	onset := ticks(cfg.Onset)
	return &endpointMonitor{
		onsetSz:  onset,
		trailAt:  ticks(cfg.TrailingSilence),
		noInput:  ticks(cfg.NoInput),
		maxTicks: ticks(cfg.MaxUtterance),
		window:   make([]bool, onset),
	}
}

// Tick advances one interval. After a terminal event (UtteranceEnd,
// NoInput, MaxLength) every further call returns EndpointNone.
func (m *endpointMonitor) Tick(hasSpeech bool) EndpointEvent {
	if m.terminated {
		return EndpointNone
	}
	m.window[m.ticks%m.onsetSz] = hasSpeech
	m.ticks++

	if !m.started {
		if m.ticks >= m.onsetSz && m.speechRatio() > 0.5 {
			m.started = true
			m.startTick = m.ticks
			return EndpointSpeechStart
		}
		if m.ticks >= m.noInput {
			m.terminated = true
			return EndpointNoInput
		}
		return EndpointNone
	}

	if hasSpeech {
		m.silentRun = 0
	} else {
		m.silentRun++
	}
	if m.silentRun >= m.trailAt {
		m.terminated = true
		return EndpointUtteranceEnd
	}
	if m.ticks-m.startTick >= m.maxTicks {
		m.terminated = true
		return EndpointMaxLength
	}
	return EndpointNone
}

func (m *endpointMonitor) speechRatio() float64 {
	n := 0
	for _, s := range m.window {
		if s {
			n++
		}
	}
	return float64(n) / float64(m.onsetSz)
}

// rms returns the root mean square of 16-bit little-endian PCM, scaled to [0,1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
