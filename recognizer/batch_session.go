package recognizer

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
)

type recognizeFunc func(ctx context.Context, audio []byte, mime string, alternatives int) (*Result, error)

type batchSession struct {
	ctx        context.Context
	cfg        SessionConfig
	recognize  recognizeFunc
	encoder    encoder.Encoder
	blockChan  chan []int16
	encodeDone chan struct{}
	sampleBuf  []int16
	closed     bool
	bufMu      sync.Mutex
}

func newBatchSession(ctx context.Context, cfg SessionConfig, recognize recognizeFunc) (*batchSession, error) {
	if cfg.Format == "" {
		cfg.Format = encoder.MIMEFlac
	}
	if cfg.Alternatives < 1 {
		cfg.Alternatives = 1
	}
	enc, err := encoder.New(cfg.Format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		ctx:        ctx,
		cfg:        cfg,
		recognize:  recognize,
		encoder:    enc,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			start := time.Now()
			bs.encoder.EncodeBlock(block)
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	return bs, nil
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.bufMu.Lock()
	defer bs.bufMu.Unlock()
	if bs.closed {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		bs.sampleBuf = append(bs.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		bs.blockChan <- block
	}
}

func (bs *batchSession) Close() (SessionResult, error) {
	bs.bufMu.Lock()
	if bs.closed {
		bs.bufMu.Unlock()
		return SessionResult{}, fmt.Errorf("session already closed")
	}
	bs.closed = true
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.sampleBuf = nil
		bs.blockChan <- partial
	}
	close(bs.blockChan)
	bs.bufMu.Unlock()

	<-bs.encodeDone

	if err := bs.encoder.Close(); err != nil {
		return SessionResult{}, fmt.Errorf("encoding utterance: %w", err)
	}

	enc := bs.encoder
	if enc.TotalFrames() == 0 {
		return SessionResult{NoSpeech: true}, nil
	}

	result, err := bs.recognize(bs.ctx, enc.Bytes(), bs.cfg.Format, bs.cfg.Alternatives)
	if err != nil {
		return SessionResult{}, err
	}

	candidates := rankedCandidates(result.Alternatives)

	rawSize := enc.TotalFrames() * 2
	encodedSize := uint64(len(enc.Bytes()))
	compressionPct := (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	audioDuration := encoder.Duration(enc.TotalFrames()).Seconds()
	netMetrics := result.Metrics
	if netMetrics == nil {
		netMetrics = &NetworkMetrics{}
	}
	var confidence float64
	if len(result.Alternatives) > 0 {
		confidence = result.Alternatives[0].Confidence
	}

	sr := SessionResult{
		Candidates: candidates,
		NoSpeech:   len(candidates) == 0,
		RateLimit:  result.RateLimit,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			DNSTimeMs:        float64(netMetrics.DNS.Milliseconds()),
			TLSTimeMs:        float64(netMetrics.TLS.Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Sum().Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
			TLSProtocol:      netMetrics.TLSProtocol,
			Confidence:       confidence,
		},
		Metrics: bs.formatMetrics(rawSize, encodedSize, compressionPct, audioDuration, netMetrics, result, len(candidates)),
	}
	sr.captureMemStats()
	return sr, nil
}

// rankedCandidates keeps API order, dropping blanks and repeats.
func rankedCandidates(alts []Alternative) []string {
	seen := make(map[string]bool, len(alts))
	out := make([]string, 0, len(alts))
	for _, a := range alts {
		t := strings.TrimSpace(a.Transcript)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (bs *batchSession) formatMetrics(rawSize, encodedSize uint64, compressionPct, audioDuration float64, metrics *NetworkMetrics, result *Result, n int) []string {
	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			audioDuration, float64(rawSize)/1024, float64(encodedSize)/1024, compressionPct),
		fmt.Sprintf("format:     %s", bs.cfg.Format),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", metrics.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("tls:        %dms", metrics.TLS.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", metrics.TTFB.Milliseconds()),
		fmt.Sprintf("total:      %dms", metrics.Sum().Milliseconds()),
		fmt.Sprintf("candidates: %d", n),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if len(result.Alternatives) > 0 && result.Alternatives[0].Confidence > 0 {
		lines = append(lines, fmt.Sprintf("confidence: %.4f", result.Alternatives[0].Confidence))
	}
	return lines
}
