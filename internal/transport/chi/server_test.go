package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/pastq/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pastq/internal/usecase/ingest"
	"github.com/kailas-cloud/pastq/internal/usecase/retrieve"
)

// --- Mocks ---

type mockRetriever struct {
	env    *result.Envelope
	err    error
	tokens int

	gotText string
	gotK    int
	gotRawK any
}

func (m *mockRetriever) Retrieve(ctx context.Context, text string, k int) (*result.Envelope, error) {
	m.gotText, m.gotK = text, k
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.env, m.err
}

func (m *mockRetriever) NormalizeK(raw any) int {
	m.gotRawK = raw
	return retrieve.NormalizeK(raw, retrieve.DefaultK, retrieve.MaxK)
}

type mockIngester struct {
	report ingestuc.Report
	names  []string
	err    error

	gotCollection string
	gotData       string
	gotIDs        []string
	dropped       string
}

func (m *mockIngester) Load(_ context.Context, collection string, data []byte) (ingestuc.Report, error) {
	m.gotCollection, m.gotData = collection, string(data)
	return m.report, m.err
}

func (m *mockIngester) Delete(_ context.Context, collection string, ids []string) error {
	m.gotCollection, m.gotIDs = collection, ids
	return m.err
}

func (m *mockIngester) Drop(_ context.Context, collection string) error {
	m.dropped = collection
	return m.err
}

func (m *mockIngester) Collections(context.Context) ([]string, error) {
	return m.names, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type fixture struct {
	retriever *mockRetriever
	ingester  *mockIngester
	health    *mockHealth
	handler   http.Handler
}

func newFixture(opts RouterOptions) *fixture {
	f := &fixture{
		retriever: &mockRetriever{env: &result.Envelope{Results: []result.Result{}}},
		ingester:  &mockIngester{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(f.retriever, f.ingester, f.health, zap.NewNop())
	f.handler = NewRouter(srv, opts, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestRetrieve_Success(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.retriever.tokens = 12
	f.retriever.env = &result.Envelope{
		Results: []result.Result{{Text: "Explain pointers.", Metadata: map[string]any{"year_bs": 2079}}},
		FilterInfo: &result.FilterInfo{
			FilterExpression: "subject == 'c_programming' and year_bs in [2079]",
		},
	}

	rr := f.do("POST", "/v1/retrieve", `{"question":"pointer questions from 2079","k":"5"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if f.retriever.gotText != "pointer questions from 2079" {
		t.Errorf("text: got %q", f.retriever.gotText)
	}
	if f.retriever.gotK != 5 {
		t.Errorf("k: got %d, want 5", f.retriever.gotK)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "12" {
		t.Errorf("X-Embedding-Tokens: got %q, want 12", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	var env result.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Results) != 1 || env.Results[0].Text != "Explain pointers." {
		t.Errorf("results: %+v", env.Results)
	}
	if env.FilterInfo == nil || !strings.Contains(env.FilterInfo.FilterExpression, "year_bs in [2079]") {
		t.Errorf("filter_info: %+v", env.FilterInfo)
	}
}

func TestRetrieve_NumericK(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("POST", "/v1/retrieve", `{"question":"q","k":7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if _, ok := f.retriever.gotRawK.(json.Number); !ok {
		t.Errorf("raw k type: got %T, want json.Number", f.retriever.gotRawK)
	}
	if f.retriever.gotK != 7 {
		t.Errorf("k: got %d, want 7", f.retriever.gotK)
	}
}

func TestRetrieve_NoTokensNoHeader(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("POST", "/v1/retrieve", `{"question":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if _, ok := rr.Header()["X-Embedding-Tokens"]; ok {
		t.Error("X-Embedding-Tokens set for a metadata-only request")
	}
	if f.retriever.gotK != retrieve.DefaultK {
		t.Errorf("k: got %d, want default %d", f.retriever.gotK, retrieve.DefaultK)
	}
}

func TestRetrieve_BadRequests(t *testing.T) {
	f := newFixture(RouterOptions{})

	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"question":`, CodeBadRequest},
		{"missing question", `{"k":3}`, CodeValidationFailed},
		{"blank question", `{"question":"   "}`, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do("POST", "/v1/retrieve", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tt.code {
				t.Errorf("code: got %s, want %s", got, tt.code)
			}
		})
	}
}

func TestListQuestions_QueryParams(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("GET", "/v1/questions?question=recursion+questions&k=4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if f.retriever.gotText != "recursion questions" {
		t.Errorf("text: got %q", f.retriever.gotText)
	}
	if f.retriever.gotRawK != "4" || f.retriever.gotK != 4 {
		t.Errorf("k: raw %v, normalized %d", f.retriever.gotRawK, f.retriever.gotK)
	}
}

func TestListQuestions_MissingQuestion(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("GET", "/v1/questions?k=4", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestListQuestions_InvalidKFallsBack(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("GET", "/v1/questions?question=q&k=abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if f.retriever.gotK != retrieve.DefaultK {
		t.Errorf("k: got %d, want %d", f.retriever.gotK, retrieve.DefaultK)
	}
}

func TestRetrieve_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
		stage  string
	}{
		{
			name:   "extraction",
			err:    domain.NewRetrievalError(domain.StageExtract, domain.NewExtractionError("missing subject", nil)),
			status: http.StatusUnprocessableEntity, code: CodeExtractionFailed, stage: domain.StageExtract,
		},
		{
			name: "extraction timeout",
			err: domain.NewRetrievalError(domain.StageExtract,
				&domain.TimeoutError{Op: domain.StageExtract, Err: context.DeadlineExceeded}),
			status: http.StatusGatewayTimeout, code: CodeTimeout, stage: domain.StageExtract,
		},
		{
			name: "rate limiter wait past deadline",
			err: domain.NewRetrievalError(domain.StageExtract,
				&domain.TimeoutError{Op: domain.StageExtract, Err: domain.ErrRateLimited}),
			status: http.StatusGatewayTimeout, code: CodeTimeout, stage: domain.StageExtract,
		},
		{
			name:   "collection missing",
			err:    domain.NewRetrievalError(domain.StageStore, fmt.Errorf("query: %w", domain.ErrCollectionNotFound)),
			status: http.StatusNotFound, code: CodeCollectionNotFound, stage: domain.StageStore,
		},
		{
			name:   "store down",
			err:    domain.NewRetrievalError(domain.StageStore, domain.ErrStoreConnection),
			status: http.StatusServiceUnavailable, code: CodeStoreUnavailable, stage: domain.StageStore,
		},
		{
			name:   "embedding provider",
			err:    domain.NewRetrievalError(domain.StageEmbed, domain.ErrEmbeddingProviderError),
			status: http.StatusBadGateway, code: CodeEmbeddingProvider, stage: domain.StageEmbed,
		},
		{
			name:   "rate limited",
			err:    domain.NewRetrievalError(domain.StageEmbed, domain.ErrRateLimited),
			status: http.StatusTooManyRequests, code: CodeRateLimited, stage: domain.StageEmbed,
		},
		{
			name:   "unknown",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError, code: CodeInternalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(RouterOptions{})
			f.retriever.err = tt.err

			rr := f.do("POST", "/v1/retrieve", `{"question":"q"}`)
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
			if resp.Stage != tt.stage {
				t.Errorf("stage: got %q, want %q", resp.Stage, tt.stage)
			}
		})
	}
}

func TestRetrieve_ErrorMessageHidesInternals(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.retriever.err = domain.NewRetrievalError(domain.StageStore,
		fmt.Errorf("dial tcp 10.0.0.7:6379: %w", domain.ErrStoreConnection))

	rr := f.do("POST", "/v1/retrieve", `{"question":"q"}`)
	msg := decodeError(t, rr).Message
	if strings.Contains(msg, "10.0.0.7") {
		t.Errorf("message leaks internals: %q", msg)
	}
	if msg != domain.ErrStoreConnection.Error() {
		t.Errorf("message: got %q", msg)
	}
}

func TestRetrieve_ExtractionReasonExposed(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.retriever.err = domain.NewRetrievalError(domain.StageExtract,
		domain.NewExtractionError("subject missing", errors.New("raw model output")))

	rr := f.do("POST", "/v1/retrieve", `{"question":"q"}`)
	msg := decodeError(t, rr).Message
	if !strings.Contains(msg, "subject missing") || strings.Contains(msg, "raw model output") {
		t.Errorf("message: got %q", msg)
	}
}

func TestListCollections(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.ingester.names = []string{"c_programming", "physics"}

	rr := f.do("GET", "/v1/collections", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp CollectionListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0] != "c_programming" {
		t.Errorf("items: %v", resp.Items)
	}
}

func TestLoadQuestions(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.ingester.report = ingestuc.Report{Collection: "c_programming", Inserted: 2, TotalTokens: 40}

	body := `[{"question":"a","subject":"c_programming"},{"question":"b","subject":"c_programming"}]`
	rr := f.do("POST", "/v1/collections/c_programming/documents", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if f.ingester.gotCollection != "c_programming" || f.ingester.gotData != body {
		t.Errorf("ingester got collection %q data %q", f.ingester.gotCollection, f.ingester.gotData)
	}
	var report ingestuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Inserted != 2 {
		t.Errorf("inserted: got %d", report.Inserted)
	}
}

func TestLoadQuestions_EmptyDataset(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.ingester.err = domain.ErrEmptyDataset

	rr := f.do("POST", "/v1/collections/c/documents", `[]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != CodeEmptyDataset {
		t.Errorf("code: got %s", got)
	}
}

func TestAdminRoutes_RequireAdminKey(t *testing.T) {
	f := newFixture(RouterOptions{APIKeys: []string{"reader"}, AdminKeys: []string{"root"}})

	rr := f.do("DELETE", "/v1/collections/c", "", "Authorization", "Bearer reader")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("reader drop: got %d, want 403", rr.Code)
	}
	if f.ingester.dropped != "" {
		t.Error("drop reached the ingester")
	}

	rr = f.do("DELETE", "/v1/collections/c", "", "Authorization", "Bearer root")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("admin drop: got %d, want 204", rr.Code)
	}
	if f.ingester.dropped != "c" {
		t.Errorf("dropped: got %q", f.ingester.dropped)
	}

	rr = f.do("POST", "/v1/retrieve", `{"question":"q"}`, "Authorization", "Bearer reader")
	if rr.Code != http.StatusOK {
		t.Errorf("reader retrieve: got %d, want 200", rr.Code)
	}
}

func TestDeleteQuestions(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("DELETE", "/v1/collections/c/documents", `{"ids":["q1","q2"]}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d", rr.Code)
	}
	if len(f.ingester.gotIDs) != 2 || f.ingester.gotIDs[1] != "q2" {
		t.Errorf("ids: %v", f.ingester.gotIDs)
	}
}

func TestDeleteQuestions_CollectionNotFound(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.ingester.err = fmt.Errorf("nope: %w", domain.ErrCollectionNotFound)

	rr := f.do("DELETE", "/v1/collections/nope/documents", `{"ids":["q1"]}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status healthuc.Status
		want   int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded still serves", healthuc.Degraded, http.StatusOK},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(RouterOptions{APIKeys: []string{"secret"}})
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentStore: healthuc.CheckOK},
			}

			rr := f.do("GET", "/health", "")
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.status) || resp.Checks[healthuc.ComponentStore] != "ok" {
				t.Errorf("body: %+v", resp)
			}
		})
	}
}

func TestMCPMount(t *testing.T) {
	called := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	f := newFixture(RouterOptions{MCP: mcp})

	rr := f.do("POST", DefaultMCPPath, `{}`)
	if !called || rr.Code != http.StatusAccepted {
		t.Errorf("mcp handler: called=%v status=%d", called, rr.Code)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	f := newFixture(RouterOptions{})

	rr := f.do("GET", "/v2/nothing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != CodeInternalError {
		t.Errorf("code: got %s", got)
	}
}
