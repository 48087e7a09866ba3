package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is where the backend listens in a local setup.
const DefaultBaseURL = "http://localhost:8000"

// Request is one recording submitted for analysis.
type Request struct {
	Transcript  string
	Audio       []byte
	Duration    int
	Goal        string
	Personality Personality
}

// Validate checks the request before anything is sent.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return ErrMissingGoal
	}
	if strings.TrimSpace(r.Transcript) == "" {
		return ErrEmptyTranscript
	}
	if !r.Personality.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPersonality, r.Personality)
	}
	return nil
}

// Recording is one entry of the backend's legacy recordings list.
type Recording struct {
	SessionID     string  `json:"session_id"`
	Goal          string  `json:"goal"`
	Timestamp     string  `json:"timestamp"`
	OverallScore  float64 `json:"overall_score"`
	AIPersonality string  `json:"ai_personality"`
}

// Time parses Timestamp, returning the zero time when it is malformed.
func (r Recording) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is an HTTP client for the analysis backend. It never retries;
// callers decide what to do with a failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty base URL selects DefaultBaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze submits a recording and returns the backend's feedback.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return Result{}, fmt.Errorf("create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	var res Result
	if err := c.do(httpReq, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func encodeRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"transcript", req.Transcript},
		{"userGoal", req.Goal},
		{"aiPersonality", string(req.Personality)},
		{"duration", strconv.Itoa(req.Duration)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if len(req.Audio) > 0 {
		fw, err := w.CreateFormFile("audio", "recording.webm")
		if err != nil {
			return nil, "", fmt.Errorf("create audio part: %w", err)
		}
		if _, err := fw.Write(req.Audio); err != nil {
			return nil, "", fmt.Errorf("write audio part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Feedback fetches stored feedback for a session. The backend returns
// either the result itself or an object with the result under "feedback".
func (c *Client) Feedback(ctx context.Context, sessionID string) (Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{}, errors.New("session id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/feedback/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create feedback request: %w", err)
	}

	var raw struct {
		Result
		Feedback *Result `json:"feedback"`
	}
	if err := c.do(httpReq, &raw); err != nil {
		return Result{}, err
	}

	res := raw.Result
	if raw.Feedback != nil {
		res = *raw.Feedback
	}
	if res.SessionID == "" {
		res.SessionID = sessionID
	}
	return res, nil
}

// Recordings lists recordings known to the backend, newest first.
func (c *Client) Recordings(ctx context.Context) ([]Recording, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recordings", nil)
	if err != nil {
		return nil, fmt.Errorf("create recordings request: %w", err)
	}

	var recs []Recording
	if err := c.do(httpReq, &recs); err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Time().After(recs[j].Time())
	})
	return recs, nil
}

// do sends req and decodes a JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return &UnreachableError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnreachableError{Endpoint: c.baseURL, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UnreachableError{Endpoint: c.baseURL, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}
