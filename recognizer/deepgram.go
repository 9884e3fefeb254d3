package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

// Deepgram uses the pre-recorded endpoint, which can return several
// ranked alternatives per channel.
type Deepgram struct {
	baseRecognizer
	apiKey string
	model  string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		baseRecognizer: baseRecognizer{
			client: NewTracedClient("https://api.deepgram.com"),
			apiURL: deepgramAPIURL,
		},
		apiKey: apiKey,
		model:  "nova-3",
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go d.client.Warm()
	if cfg.Language != "" {
		d.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, d.recognize)
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) requestURL(alternatives int) string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "false")
	q.Set("punctuate", "false")
	if alternatives > 1 {
		q.Set("alternatives", strconv.Itoa(alternatives))
	}
	if d.lang != "" {
		q.Set("language", d.lang)
	}
	return d.apiURL + "?" + q.Encode()
}

func (d *Deepgram) recognize(ctx context.Context, audioData []byte, mime string, alternatives int) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.requestURL(alternatives), bytes.NewReader(audioData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", mime)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var alts []Alternative
	if len(dgResp.Results.Channels) > 0 {
		for _, a := range dgResp.Results.Channels[0].Alternatives {
			alts = append(alts, Alternative{Transcript: a.Transcript, Confidence: a.Confidence})
		}
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Alternatives: alts,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		Duration:     dgResp.Metadata.Duration,
	}, nil
}
