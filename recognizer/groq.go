package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
)

const groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// Groq runs Whisper, which returns a single hypothesis per utterance.
type Groq struct {
	baseRecognizer
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		baseRecognizer: baseRecognizer{
			client: NewTracedClient("https://api.groq.com"),
			apiURL: groqAPIURL,
		},
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go g.client.Warm()
	if cfg.Language != "" {
		g.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, g.recognize)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		AvgLogProb   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// noSpeechThreshold drops Whisper output the model itself flags as silence.
const noSpeechThreshold = 0.8

func (g *Groq) recognize(ctx context.Context, audioData []byte, mime string, _ int) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+encoder.Extension(mime))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}

	writer.WriteField("model", "whisper-large-v3-turbo")
	writer.WriteField("response_format", "verbose_json")
	if g.lang != "" {
		writer.WriteField("language", baseLanguage(g.lang))
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	var noSpeech float64
	for _, seg := range gResp.Segments {
		noSpeech = max(noSpeech, seg.NoSpeechProb)
	}

	var alts []Alternative
	if noSpeech < noSpeechThreshold {
		alts = []Alternative{{Transcript: gResp.Text, Confidence: 1 - noSpeech}}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Alternatives: alts,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		Duration:     gResp.Duration,
	}, nil
}
