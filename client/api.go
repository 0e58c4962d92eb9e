package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/core"
	"voiceagent/protocol"
	"voiceagent/utils/audio"
)

const maxResponseBytes = 1 << 20

type TurnStatus string

const (
	TurnSuccess TurnStatus = "success"
	TurnPartial TurnStatus = "partial"
	TurnError   TurnStatus = "error"
)

// TurnResponse is the server's answer to one submitted recording.
type TurnResponse struct {
	Status     TurnStatus `json:"-"`
	HTTPStatus int        `json:"-"`

	UserMessage     string         `json:"user_message"`
	AIResponse      string         `json:"ai_response"`
	AudioURL        string         `json:"audio_url"`
	Truncated       bool           `json:"truncated"`
	Error           string         `json:"error"`
	Kind            core.ErrorKind `json:"kind"`
	FallbackMessage string         `json:"fallback_message"`
	TurnID          string         `json:"turn_id"`
}

// API is the server surface the Controller needs.
type API interface {
	SubmitTurn(ctx context.Context, sessionKey string, audio core.AudioPayload) (*TurnResponse, error)
	ResetSession(ctx context.Context, sessionKey string) (string, error)
}

type HistoryMessage struct {
	Role      core.MessageRole `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

type History struct {
	Status    string           `json:"status"`
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

type HealthReport struct {
	Status   HealthStatus      `json:"status"`
	Services map[string]string `json:"services"`
}

// HTTPClient talks to the agent's HTTP API.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPClient{baseURL: u, http: httpClient}, nil
}

// ResolveURL turns a server-relative audio path into an absolute URL.
func (c *HTTPClient) ResolveURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}

func (c *HTTPClient) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// SubmitTurn uploads a recording. Any JSON answer from the server, error
// statuses included, is a response; only transport failures are errors.
func (c *HTTPClient) SubmitTurn(ctx context.Context, sessionKey string, payload core.AudioPayload) (*TurnResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	filename := payload.Filename
	if filename == "" {
		filename = "recording" + audio.Extension(payload.MimeType)
	}
	part, err := mw.CreatePart(partHeader("audio_file", filename, payload.MimeType))
	if err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("agent", "chat", sessionKey), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if id := core.TurnIDFromContext(ctx); id != "" {
		req.Header.Set(protocol.TurnIDHeader, id)
	}

	var out TurnResponse
	status, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	out.HTTPStatus = status
	switch status {
	case http.StatusOK:
		out.Status = TurnSuccess
	case http.StatusPartialContent:
		out.Status = TurnPartial
	default:
		out.Status = TurnError
	}
	if out.AudioURL != "" {
		out.AudioURL = c.ResolveURL(out.AudioURL)
	}
	return &out, nil
}

func (c *HTTPClient) ResetSession(ctx context.Context, sessionKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("agent", "session", sessionKey, "reset"), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	status, err := c.do(req, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || out.SessionID == "" {
		return "", fmt.Errorf("client: reset session: unexpected status %d", status)
	}
	return out.SessionID, nil
}

func (c *HTTPClient) History(ctx context.Context, sessionKey string) (*History, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("agent", "history", sessionKey), nil)
	if err != nil {
		return nil, err
	}
	var out History
	status, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("client: history: unexpected status %d", status)
	}
	return &out, nil
}

// Health fetches /health. A 503 still carries a report.
func (c *HTTPClient) Health(ctx context.Context) (*HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("health"), nil)
	if err != nil {
		return nil, err
	}
	var out HealthReport
	if _, err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("client: read response: %w", err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("client: decode %d response: %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func partHeader(field, filename, mimeType string) textproto.MIMEHeader {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)},
		"Content-Type":        {mimeType},
	}
}
