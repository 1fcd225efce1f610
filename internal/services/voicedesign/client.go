package voicedesign

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrRejected marks a request the voice design service answered with a
// non-zero status code.
var ErrRejected = errors.New("voice design rejected")

// HTTPDoer describes the HTTP client used by the voice design client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the endpoint settings.
type Config struct {
	URL            string
	APIToken       string
	TimeoutSeconds int
}

// Sample is a generated reference voice clip.
type Sample struct {
	VoiceID string
	Audio   []byte
}

// Client turns a text description into a sample audio clip.
type Client struct {
	url     string
	token   string
	timeout time.Duration
	client  HTTPDoer
}

// NewClient constructs a client. A nil doer uses a default HTTP client with
// the configured timeout.
func NewClient(cfg Config, doer HTTPDoer) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:     strings.TrimSpace(cfg.URL),
		token:   strings.TrimSpace(cfg.APIToken),
		timeout: timeout,
		client:  doer,
	}
}

type designRequest struct {
	Prompt      string `json:"prompt"`
	PreviewText string `json:"preview_text"`
}

type designResponse struct {
	TrialAudio string `json:"trial_audio"`
	VoiceID    string `json:"voice_id"`
	BaseResp   struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// Design requests one sample for prompt, voiced reading previewText.
func (c *Client) Design(ctx context.Context, prompt, previewText string) (Sample, error) {
	var sample Sample
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return sample, errors.New("voice design: prompt required")
	}
	if c.url == "" {
		return sample, errors.New("voice design: url required")
	}
	if c.token == "" {
		return sample, errors.New("voice design: api token required")
	}

	body, err := json.Marshal(designRequest{Prompt: prompt, PreviewText: previewText})
	if err != nil {
		return sample, fmt.Errorf("voice design: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return sample, fmt.Errorf("voice design: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return sample, fmt.Errorf("voice design: http error (timeout=%s): %w", c.timeout, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return sample, fmt.Errorf("voice design: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return sample, fmt.Errorf("voice design: http %d: %s", resp.StatusCode, snippet(payload))
	}

	var decoded designResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return sample, fmt.Errorf("voice design: decode response: %w", err)
	}
	if decoded.BaseResp.StatusCode != 0 {
		return sample, fmt.Errorf("%w: status %d: %s", ErrRejected, decoded.BaseResp.StatusCode, decoded.BaseResp.StatusMsg)
	}
	audio, err := hex.DecodeString(strings.TrimSpace(decoded.TrialAudio))
	if err != nil {
		return sample, fmt.Errorf("voice design: decode trial audio: %w", err)
	}
	if len(audio) == 0 {
		return sample, errors.New("voice design: empty trial audio")
	}
	sample.VoiceID = decoded.VoiceID
	sample.Audio = audio
	return sample, nil
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.Join(strings.Fields(string(body)), " ")
	if runes := []rune(text); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
