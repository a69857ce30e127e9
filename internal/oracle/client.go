// Package oracle is the request/response boundary to the external
// text-generation service. Its output is untrusted input: the safety gate,
// not the oracle, decides whether a script may run.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 120 * time.Second

	// one immediate retry with a short fixed backoff, then give up
	retryMax  = 1
	retryWait = 2 * time.Second
)

// UnavailableError covers transport failures and non-200 responses after the
// bounded retry. Fatal to synthesis; the session reports BLOCKED.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("oracle unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RefusalError means the oracle answered but declined to produce a script.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("oracle refused to generate a script: %s", e.Reason)
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	hc      *retryablehttp.Client
}

func NewClient(apiKey, model, baseURL string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = retryMax
	hc.RetryWaitMin = retryWait
	hc.RetryWaitMax = retryWait
	hc.HTTPClient.Timeout = timeout
	hc.Logger = nil
	return &Client{apiKey: apiKey, model: model, baseURL: baseURL, hc: hc}
}

func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateScript sends the remediation prompt and returns the raw script
// text. The caller supplies the deadline through ctx.
func (c *Client) GenerateScript(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: 0.2},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode oracle request")
	}

	requestURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(c.baseURL, "/"), c.model, c.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", errors.Wrap(err, "failed to build oracle request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, excerpt(body))}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &UnavailableError{Err: errors.Wrap(err, "unparseable oracle response")}
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", &RefusalError{Reason: "prompt blocked: " + parsed.PromptFeedback.BlockReason}
	}
	if len(parsed.Candidates) == 0 {
		return "", &RefusalError{Reason: "no candidates returned"}
	}
	candidate := parsed.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", &RefusalError{Reason: "generation stopped for safety"}
	}
	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &RefusalError{Reason: "empty response"}
	}
	log.Debugf("oracle returned %d bytes", text.Len())
	return text.String(), nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
