// Package gemini is the transport client for the hosted model API. It owns
// conversation handles, retry with exponential backoff, and the
// quota/retryable/permanent error classification.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextstep-labs/nextstep/internal/chat"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const (
	maxRetries  = 3
	baseBackoff = 2000 * time.Millisecond
)

type Client struct {
	apiKey            string
	model             string
	systemInstruction string
	temperature       float64
	searchGrounding   bool
	baseURL           string
	client            *http.Client
	logger            *slog.Logger

	// sleep is swapped out by tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(apiKey, model, systemInstruction string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:            apiKey,
		model:             model,
		systemInstruction: systemInstruction,
		temperature:       0.7,
		searchGrounding:   true,
		baseURL:           defaultBaseURL,
		client:            &http.Client{Timeout: 120 * time.Second},
		logger:            logger,
		sleep:             sleepCtx,
	}
}

// SetTemperature overrides the default sampling temperature of 0.7.
func (c *Client) SetTemperature(t float64) {
	c.temperature = t
}

// SetSearchGrounding toggles the Google Search tool; on by default.
func (c *Client) SetSearchGrounding(enabled bool) {
	c.searchGrounding = enabled
}

func (c *Client) SetTestTransport(baseURL string) {
	c.baseURL = baseURL
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type tool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type request struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	Tools             []tool           `json:"tools,omitempty"`
}

type response struct {
	Candidates []struct {
		Content           content `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a structured failure returned by the model API.
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s — %s", e.Code, e.Status, e.Message)
}

// Chat is one live conversation handle. History accumulates inside the
// handle; a new handle is created whenever the active session changes.
type Chat struct {
	client  *Client
	history []content
}

// NewChat seeds a conversation handle by replaying persisted turns.
// Handoff-only turns are excluded: they carry no durable conversational
// content worth replaying.
func (c *Client) NewChat(history []chat.Message) *Chat {
	contents := make([]content, 0, len(history))
	for _, m := range history {
		switch m.Type {
		case chat.TypeText, chat.TypeRoadmap, chat.TypeCourses:
			contents = append(contents, content{Role: string(m.Role), Parts: []part{{Text: m.Text}}})
		}
	}
	return &Chat{client: c, history: contents}
}

// NewConversation satisfies chat.Transport.
func (c *Client) NewConversation(history []chat.Message) chat.Conversation {
	return c.NewChat(history)
}

// Send submits one user turn and returns the model reply. Quota failures
// surface immediately as chat.ErrQuotaExceeded; retryable failures back off
// 2s/4s/8s before giving up with chat.ErrMaxRetries; anything else is
// returned unchanged. On success the user and model turns are appended to
// the handle's history.
func (ch *Chat) Send(ctx context.Context, text string) (*chat.Reply, error) {
	turn := content{Role: "user", Parts: []part{{Text: text}}}
	contents := append(append([]content{}, ch.history...), turn)

	delay := baseBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		reply, modelTurn, err := ch.client.generate(ctx, contents)
		if err == nil {
			ch.history = append(ch.history, turn, modelTurn)
			return reply, nil
		}

		if isQuota(err) {
			ch.client.logger.Warn("model quota exceeded", "error", err)
			return nil, fmt.Errorf("%w: %w", chat.ErrQuotaExceeded, err)
		}

		if isRetryable(err) && attempt < maxRetries {
			ch.client.logger.Warn("model busy, backing off",
				"delay", delay,
				"attempt", attempt+1,
				"error", err,
			)
			if serr := ch.client.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
			delay *= 2
			continue
		}

		// The cause stays in the chain alongside the sentinel; notice
		// classification unwraps to the *url.Error for network faults.
		if isRetryable(err) {
			return nil, fmt.Errorf("%w: %w", chat.ErrMaxRetries, err)
		}
		return nil, err
	}

	return nil, chat.ErrMaxRetries
}

func (c *Client) generate(ctx context.Context, contents []content) (*chat.Reply, content, error) {
	reqBody := request{
		Contents:         contents,
		GenerationConfig: generationConfig{Temperature: c.temperature},
	}
	if c.systemInstruction != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: c.systemInstruction}}}
	}
	if c.searchGrounding {
		reqBody.Tools = []tool{{}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, content{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, content{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, content{}, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, content{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, content{}, &APIError{
				Code:    errResp.Error.Code,
				Status:  errResp.Error.Status,
				Message: errResp.Error.Message,
			}
		}
		return nil, content{}, &APIError{Code: resp.StatusCode, Message: string(respBody)}
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, content{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Candidates) == 0 {
		return nil, content{}, fmt.Errorf("empty response candidates")
	}

	cand := apiResp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}

	reply := &chat.Reply{Text: sb.String()}
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk.Web.URI != "" {
			reply.Citations = append(reply.Citations, chat.Citation{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}

	modelTurn := content{Role: "model", Parts: []part{{Text: reply.Text}}}
	return reply, modelTurn, nil
}

// isQuota detects daily-quota exhaustion, which must fail fast. A 429 can
// mean either "slow down" (retryable) or "done for the day"; only the
// latter matches here, and it is checked before retryability.
func isQuota(err error) bool {
	msg := strings.ToLower(err.Error())
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
		if apiErr.Code == http.StatusTooManyRequests && strings.Contains(msg, "exhausted") {
			return true
		}
	}
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted")
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
		if apiErr.Status == "UNKNOWN" {
			return true
		}
	}

	// Transport-level failures (connection refused, resets, timeouts).
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "500")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
