package pastq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://host"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q): expected error", raw)
		}
	}
}

func TestRetrieve_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/retrieve" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization: got %q", got)
		}
		if r.Header.Get(headerRequestID) == "" {
			t.Error("request id header missing")
		}
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Question != "pointers in 2079" || req.K != 2 {
			t.Errorf("request: %+v", req)
		}
		w.Header().Set(headerEmbeddingTokens, "12")
		writeBody(w, http.StatusOK, map[string]any{
			"results": []map[string]any{
				{"text": "Explain pointers.", "metadata": map[string]any{"year_bs": 2079}},
			},
			"filter_info": map[string]any{"filter_expression": "year_bs == 2079", "metadata_only": false},
		})
	}, WithAPIKey("secret"))

	env, err := c.Retrieve(context.Background(), "pointers in 2079", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(env.Results) != 1 || env.Results[0].Text != "Explain pointers." {
		t.Errorf("results: %+v", env.Results)
	}
	if env.FilterInfo == nil || env.FilterInfo.FilterExpression != "year_bs == 2079" {
		t.Errorf("filter info: %+v", env.FilterInfo)
	}
	if env.EmbeddingTokens != 12 {
		t.Errorf("embedding tokens: got %d", env.EmbeddingTokens)
	}
}

func TestRetrieve_ZeroKOmitted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		if _, ok := raw["k"]; ok {
			t.Errorf("k should be omitted, body %s", body)
		}
		writeBody(w, http.StatusOK, map[string]any{"results": []any{}})
	})

	env, err := c.Retrieve(context.Background(), "anything", -4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if env.EmbeddingTokens != 0 || len(env.Results) != 0 {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestQuestions_QueryParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/questions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("question") != "5 mark questions" || q.Get("k") != "4" {
			t.Errorf("query: %v", q)
		}
		writeBody(w, http.StatusOK, map[string]any{"results": []any{}})
	})

	if _, err := c.Questions(context.Background(), "5 mark questions", 4); err != nil {
		t.Fatalf("Questions: %v", err)
	}
}

func TestAPIError_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"validation", http.StatusBadRequest, "validation_failed", ErrInvalidArgument},
		{"extraction", http.StatusBadGateway, "extraction_failed", ErrExtraction},
		{"timeout", http.StatusGatewayTimeout, "timeout", ErrTimeout},
		{"rate limited", http.StatusTooManyRequests, "rate_limited", ErrRateLimited},
		{"not found", http.StatusNotFound, "collection_not_found", ErrCollectionNotFound},
		{"store", http.StatusServiceUnavailable, "store_unavailable", ErrStoreConnection},
		{"embedding", http.StatusBadGateway, "embedding_provider_error", ErrEmbeddingProviderError},
		{"empty", http.StatusBadRequest, "empty_dataset", ErrEmptyDataset},
		{"unauthorized", http.StatusUnauthorized, "unauthorized", ErrUnauthorized},
		{"forbidden", http.StatusForbidden, "forbidden", ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tt.status, map[string]string{"code": tt.code, "message": "boom", "stage": "embed"})
			})

			_, err := c.Retrieve(context.Background(), "q", 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("not an APIError: %T", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != "boom" || apiErr.Stage != "embed" {
				t.Errorf("api error: %+v", apiErr)
			}
		})
	}
}

func TestAPIError_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})

	_, err := c.Collections(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "bad_gateway" || apiErr.Message != "upstream broke" {
		t.Errorf("api error: %+v", apiErr)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("unknown code must not match a sentinel")
	}
}

func TestCollections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, map[string]any{"items": []string{"questions", "archive"}})
	})

	names, err := c.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(names) != 2 || names[0] != "questions" {
		t.Errorf("names: %v", names)
	}
}

func TestLoad(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/collections/c programming/documents" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var recs []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(recs) != 2 || recs[0]["question"] != "What is a pointer?" {
			t.Errorf("records: %v", recs)
		}
		writeBody(w, http.StatusCreated, map[string]any{
			"collection": "c programming", "inserted": 2, "generated_ids": 1, "total_tokens": 30,
		})
	})

	report, err := c.Load(context.Background(), "c programming", []Record{
		{"question": "What is a pointer?", "id": "q1"},
		{"question": "Define recursion.", "year_bs": 2079},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Inserted != 2 || report.GeneratedIDs != 1 || report.TotalTokens != 30 {
		t.Errorf("report: %+v", report)
	}
}

func TestDeleteAndDrop(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/v1/collections/questions/documents" {
			var req deleteRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.IDs) != 2 {
				t.Errorf("ids: %v", req.IDs)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	if err := c.Delete(ctx, "questions", []string{"a", "b"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Drop(ctx, "questions"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	want := []string{
		"DELETE /v1/collections/questions/documents",
		"DELETE /v1/collections/questions",
	}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls: %v", calls)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		want    string
		healthy bool
	}{
		{"ok", http.StatusOK, map[string]any{"status": "ok", "checks": map[string]string{"store": "ok"}}, "ok", true},
		{"degraded", http.StatusOK, map[string]any{"status": "degraded", "checks": map[string]string{"embedding": "error"}}, "degraded", false},
		{"unhealthy", http.StatusServiceUnavailable, map[string]any{"status": "error", "checks": map[string]string{"store": "error"}}, "error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tt.status, tt.body)
			})
			h, err := c.Health(context.Background())
			if err != nil {
				t.Fatalf("Health: %v", err)
			}
			if h.Status != tt.want || h.Healthy() != tt.healthy {
				t.Errorf("got %+v", h)
			}
		})
	}
}

func TestHealth_GatewayFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if _, err := c.Health(context.Background()); err == nil {
		t.Error("expected error for empty 503")
	}
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/collections" {
			writeBody(w, http.StatusOK, map[string]any{"items": []string{}})
			return
		}
		writeBody(w, http.StatusNotFound, map[string]string{"code": "collection_not_found", "message": "nope"})
	}, WithPrometheus(reg))

	ctx := context.Background()
	_, _ = c.Collections(ctx)
	_ = c.Drop(ctx, "missing")

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("collections", "ok")); got != 1 {
		t.Errorf("collections ok: got %v", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("drop", "error")); got != 1 {
		t.Errorf("drop error: got %v", got)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("http://localhost", WithPrometheus(reg)); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New("http://localhost", WithPrometheus(reg)); err != nil {
		t.Fatalf("second New should reuse collectors: %v", err)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), nil)
}
