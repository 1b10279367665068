package pastq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/pastq/internal/version"
)

const (
	headerRequestID       = "X-Request-Id"
	headerEmbeddingTokens = "X-Embedding-Tokens"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client talks to a pastq server. Safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: DefaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("pastq: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("pastq: base url %q must be http or https", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	ua := cfg.userAgent
	if ua == "" {
		ua = "pastq-go/" + version.Version
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      base,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: ua,
		obs:       obs,
	}, nil
}

// Retrieve answers a question with at most k past questions.
// k <= 0 uses the server default.
func (c *Client) Retrieve(ctx context.Context, question string, k int) (env *Envelope, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	env = &Envelope{}
	resp, err := c.do(ctx, http.MethodPost, "/v1/retrieve", nil,
		retrieveRequest{Question: question, K: max(k, 0)}, env)
	if err != nil {
		return nil, err
	}
	env.EmbeddingTokens = embeddingTokens(resp)
	return env, nil
}

// Questions is Retrieve over GET /v1/questions.
func (c *Client) Questions(ctx context.Context, question string, k int) (env *Envelope, err error) {
	start := time.Now()
	defer func() { c.obs.observe("questions", start, err) }()

	q := url.Values{"question": {question}}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	env = &Envelope{}
	resp, err := c.do(ctx, http.MethodGet, "/v1/questions", q, nil, env)
	if err != nil {
		return nil, err
	}
	env.EmbeddingTokens = embeddingTokens(resp)
	return env, nil
}

// Collections lists question collections.
func (c *Client) Collections(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("collections", start, err) }()

	var out collectionList
	if _, err = c.do(ctx, http.MethodGet, "/v1/collections", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Load inserts records into a collection, creating it when missing.
// Needs an admin key.
func (c *Client) Load(ctx context.Context, collection string, records []Record) (*LoadReport, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("pastq: encode records: %w", err)
	}
	return c.LoadJSON(ctx, collection, data)
}

// LoadJSON is Load for a dataset that is already a JSON array.
func (c *Client) LoadJSON(ctx context.Context, collection string, data []byte) (report *LoadReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("load", start, err) }()

	report = &LoadReport{}
	if _, err = c.do(ctx, http.MethodPost, documentsPath(collection), nil, json.RawMessage(data), report); err != nil {
		return nil, err
	}
	return report, nil
}

// Delete removes questions by id. Needs an admin key.
func (c *Client) Delete(ctx context.Context, collection string, ids []string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	_, err = c.do(ctx, http.MethodDelete, documentsPath(collection), nil, deleteRequest{IDs: ids}, nil)
	return err
}

// Drop removes a collection and its questions. Needs an admin key.
func (c *Client) Drop(ctx context.Context, collection string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("drop", start, err) }()

	_, err = c.do(ctx, http.MethodDelete, "/v1/collections/"+url.PathEscape(collection), nil, nil, nil)
	return err
}

// Health fetches the server health report.
// An unhealthy server is reported in the status, not as an error.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	_, err = c.do(ctx, http.MethodGet, "/health", nil, nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && h.Status != "" {
		return h, nil
	}
	return h, err
}

func documentsPath(collection string) string {
	return "/v1/collections/" + url.PathEscape(collection) + "/documents"
}

// do sends one request. A non-2xx response becomes *APIError; out is
// still decoded for 503 so Health can read the report.
func (c *Client) do(
	ctx context.Context, method, path string, query url.Values, body, out any,
) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("pastq: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("pastq: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerRequestID, uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pastq: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusServiceUnavailable && out != nil {
			_ = json.Unmarshal(data, out)
		}
		return resp, decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("pastq: decode response: %w", err)
	}
	return resp, nil
}

func decodeAPIError(status int, data []byte) *APIError {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &APIError{
			StatusCode: status,
			Code:       strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
			Message:    strings.TrimSpace(string(data)),
		}
	}
	return &APIError{
		StatusCode: status,
		Code:       body.Code,
		Message:    body.Message,
		Stage:      body.Stage,
	}
}

func embeddingTokens(resp *http.Response) int {
	n, err := strconv.Atoi(resp.Header.Get(headerEmbeddingTokens))
	if err != nil {
		return 0
	}
	return n
}
