package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/jackzampolin/quill/docs/swagger"
	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/internal/llmcall"
	"github.com/jackzampolin/quill/internal/providers"
	"github.com/jackzampolin/quill/internal/svcctx"
)

type testEnv struct {
	t       *testing.T
	handler http.Handler
	llm     *providers.MockClient
	bank    *credits.Bank
	store   *llmcall.Store
	cookie  *http.Cookie
}

func newTestEnv(t *testing.T, cfg credits.Config) *testEnv {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	if cfg.Costs == (credits.Costs{}) {
		cfg.Costs = credits.DefaultCosts()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bank, err := credits.NewBank(cfg, logger)
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}

	store, err := llmcall.Open(":memory:")
	if err != nil {
		t.Fatalf("llmcall.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mock := providers.NewMockClient()
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Register(mock)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("credits:\n  secret: topsecret\nllm:\n  model: test-model\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	mgr, err := config.NewManager(cfgPath)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	homeDir, err := home.New(filepath.Join(t.TempDir(), "quill-home"))
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	resolver := course.NewResolver()
	services := &svcctx.Services{
		ConfigManager:  mgr,
		Bank:           bank,
		Registry:       registry,
		Courses:        course.NewService(course.Config{LLM: registry, Prompts: resolver, Logger: logger}),
		PromptResolver: resolver,
		LLMCallStore:   store,
		Logger:         logger,
		Home:           homeDir,
	}

	reg := api.NewRegistry()
	for _, ep := range All() {
		reg.Register(ep)
	}
	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, nil)

	return &testEnv{
		t:     t,
		llm:   mock,
		bank:  bank,
		store: store,
		handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
		}),
	}
}

// do sends a request carrying the last credit cookie and keeps the new one.
func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == e.bank.CookieName() {
			e.cookie = c
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	rec := env.do("GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[HealthResponse](t, rec); got.Status != "ok" {
		t.Errorf("Status = %q", got.Status)
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t, credits.Config{})

	rec := env.do("GET", "/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decode[ReadyResponse](t, rec)
	if got.Status != "ok" || !got.LLM.Reachable || got.LLM.Provider != providers.MockClientName {
		t.Errorf("ready = %+v", got)
	}

	env.llm.HealthErr = providers.ErrUnauthorized
	rec = env.do("GET", "/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	got = decode[ReadyResponse](t, rec)
	if got.Status != "degraded" || got.LLM.Reachable || got.LLM.Error == "" {
		t.Errorf("ready = %+v", got)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})
	rec := env.do("GET", "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[StatusResponse](t, rec)
	if got.LLM.Provider != providers.MockClientName || !got.LLM.Configured {
		t.Errorf("LLM = %+v", got.LLM)
	}
	if got.Credits.Initial != 10 || got.Credits.Costs != credits.DefaultCosts() {
		t.Errorf("Credits = %+v", got.Credits)
	}
	if !got.Journal {
		t.Error("Journal = false, want true")
	}
	if !strings.HasSuffix(got.Home, "quill-home") {
		t.Errorf("Home = %q", got.Home)
	}
}

func TestCredits_FreshClient(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})

	rec := env.do("GET", "/api/credits", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[CreditsResponse](t, rec)
	if got.Credits != 10 {
		t.Errorf("Credits = %d, want 10", got.Credits)
	}
	if got.TopupAllowed == nil || !*got.TopupAllowed {
		t.Errorf("TopupAllowed = %v, want true outside production", got.TopupAllowed)
	}
}

func TestTopup(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})

	rec := env.do("POST", "/api/credits", `{"amount": 5.7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[CreditsResponse](t, rec); got.Credits != 15 {
		t.Errorf("Credits = %d, want 15", got.Credits)
	}
	if env.cookie == nil || !env.cookie.HttpOnly {
		t.Fatalf("cookie = %+v, want HttpOnly credit cookie", env.cookie)
	}

	rec = env.do("POST", "/api/credits", `not json`)
	if got := decode[CreditsResponse](t, rec); rec.Code != http.StatusOK || got.Credits != 15 {
		t.Errorf("unreadable body: status = %d, credits = %d", rec.Code, got.Credits)
	}

	if got := decode[CreditsResponse](t, env.do("GET", "/api/credits", "")); got.Credits != 15 {
		t.Errorf("balance after top-up = %d, want 15", got.Credits)
	}
}

func TestTopup_AmountCoercion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"numeric string", `{"amount": "5"}`, 15},
		{"fractional string", `{"amount": "2.9"}`, 12},
		{"non-numeric string", `{"amount": "lots"}`, 10},
		{"negative", `{"amount": -3}`, 10},
		{"missing", `{}`, 10},
		{"overflow", `{"amount": 1e400}`, credits.MaxBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, credits.Config{InitialCredits: 10})
			rec := env.do("POST", "/api/credits", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if got := decode[CreditsResponse](t, rec); got.Credits != tt.want {
				t.Errorf("Credits = %d, want %d", got.Credits, tt.want)
			}
		})
	}
}

func TestTopup_Disabled(t *testing.T) {
	env := newTestEnv(t, credits.Config{Production: true, InitialCredits: 10})

	rec := env.do("POST", "/api/credits", `{"amount": 5}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "Top-up disabled" {
		t.Errorf("error = %q", got.Error)
	}
	if env.cookie != nil {
		t.Error("rejected top-up must not write a cookie")
	}
}

func TestDiscover_Billing(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10, Costs: credits.Costs{Discover: 3}})
	env.llm.ResponseText = `{"opportunities": ["Go for Beginners", "Go at Scale", "Testing in Go"]}`

	rec := env.do("POST", "/api/discover", `{"topic": "golang"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	titles := decode[[]string](t, rec)
	if len(titles) != 3 || titles[0] != "Go for Beginners" {
		t.Errorf("titles = %v", titles)
	}
	if got := rec.Header().Get(api.CreditsHeader); got != "7" {
		t.Errorf("%s = %q, want 7", api.CreditsHeader, got)
	}

	// The cookie decodes to the new balance.
	payload, ok := env.bank.Codec().Decode(env.cookie.Value)
	if !ok {
		t.Fatal("Decode(cookie) rejected the server's own token")
	}
	if payload.Credits != 7 {
		t.Errorf("cookie credits = %d, want 7", payload.Credits)
	}
}

func TestBillable_InsufficientCredits(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 1, Costs: credits.Costs{Discover: 1, Outline: 1}})
	env.llm.ResponseText = `["A", "B", "C"]`

	if rec := env.do("POST", "/api/discover", `{"topic": "go"}`); rec.Code != http.StatusOK {
		t.Fatalf("first call status = %d", rec.Code)
	}
	calls := env.llm.RequestCount()

	rec := env.do("POST", "/api/outline", `{"opportunityTitle": "Go", "numChapters": 3}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "Not enough credits" {
		t.Errorf("error = %q", got.Error)
	}
	if env.llm.RequestCount() != calls {
		t.Error("LLM must not be called without credits")
	}
	if got := decode[CreditsResponse](t, env.do("GET", "/api/credits", "")); got.Credits != 0 {
		t.Errorf("balance = %d, want 0", got.Credits)
	}
}

func TestBillable_NoDebitOnFailure(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 5})
	env.llm.ShouldFail = true
	env.llm.FailErr = providers.ErrRateLimited

	rec := env.do("POST", "/api/generate", `{"courseTitle": "Go", "chapterTitle": "Channels", "learningObjectives": ["select"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error == "" {
		t.Error("error message missing")
	}
	if rec.Header().Get(api.CreditsHeader) != "" {
		t.Error("failed call must not report a balance")
	}
	if got := decode[CreditsResponse](t, env.do("GET", "/api/credits", "")); got.Credits != 5 {
		t.Errorf("balance = %d, want 5", got.Credits)
	}
}

func TestBillable_Validation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"bad json", "/api/discover", `{`, "Invalid JSON body"},
		{"missing topic", "/api/discover", `{"topic": "  "}`, "Invalid or missing 'topic'"},
		{"zero chapters", "/api/outline", `{"opportunityTitle": "Go", "numChapters": 0}`, ""},
		{"fractional chapters", "/api/outline", `{"opportunityTitle": "Go", "numChapters": 2.5}`, ""},
		{"too many chapters", "/api/outline", `{"opportunityTitle": "Go", "numChapters": 51}`, ""},
		{"objectives not array", "/api/generate", `{"courseTitle": "Go", "chapterTitle": "C"}`, ""},
		{"crm without outline", "/api/crm", `{"courseTitle": "Go"}`, "Invalid payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, credits.Config{InitialCredits: 10})
			rec := env.do("POST", tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			got := decode[ErrorResponse](t, rec)
			if tt.want != "" && got.Error != tt.want {
				t.Errorf("error = %q, want %q", got.Error, tt.want)
			}
			if env.llm.RequestCount() != 0 {
				t.Error("LLM called for invalid request")
			}
			if env.cookie != nil {
				t.Error("invalid request must not write a cookie")
			}
		})
	}
}

func TestOutline(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})
	env.llm.ResponseText = `{"title": "Go", "chapters": [{"title": "One", "summary": ["a"]}, {"title": "Two", "summary": ["b"]}]}`

	rec := env.do("POST", "/api/outline", `{"opportunityTitle": "Go", "numChapters": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decode[course.Outline](t, rec)
	if got.Title != "Go" || len(got.Chapters) != 2 || got.Chapters[1].Title != "Two" {
		t.Errorf("outline = %+v", got)
	}
}

func TestGenerateAndCRM(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})
	env.llm.Responses = []string{"# Channels\n\nBody", "# Landing Page"}

	rec := env.do("POST", "/api/generate", `{"courseTitle": "Go", "chapterTitle": "Channels", "learningObjectives": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[ContentResponse](t, rec); got.Content != "# Channels\n\nBody" {
		t.Errorf("generate content = %q", got.Content)
	}

	rec = env.do("POST", "/api/crm", `{"courseTitle": "Go", "outline": {"chapters": [{"title": "Channels", "summary": ["a"]}]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("crm status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[ContentResponse](t, rec); got.Content != "# Landing Page" {
		t.Errorf("crm content = %q", got.Content)
	}
	if got := rec.Header().Get(api.CreditsHeader); got != "8" {
		t.Errorf("balance after two calls = %q, want 8", got)
	}
}

func TestDocs_NotBilled(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 0})
	env.llm.ResponseText = `{"title": "Channels", "content": "# Channels"}`

	rec := env.do("POST", "/api/docs", `{"topic": "channels"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[course.Doc](t, rec); got.Title != "Channels" {
		t.Errorf("doc = %+v", got)
	}
	if env.cookie != nil {
		t.Error("docs must not touch the credit cookie")
	}
}

func TestTamperedCookieFallsBack(t *testing.T) {
	env := newTestEnv(t, credits.Config{InitialCredits: 10})
	env.do("POST", "/api/credits", `{"amount": 100}`)

	tampered := *env.cookie
	b := []byte(tampered.Value)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	tampered.Value = string(b)
	env.cookie = &tampered

	if got := decode[CreditsResponse](t, env.do("GET", "/api/credits", "")); got.Credits != 10 {
		t.Errorf("Credits = %d, want initial 10", got.Credits)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, credits.Config{})

	rec := env.do("POST", "/api/export", `{"title": "Go Basics", "chapters": [{"title": "One", "summary": ["a"], "content": "# Hi\n\nText"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Go%20Basics.docx"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip archive")
	}
}

func TestExport_InvalidPayload(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	for _, body := range []string{
		`{"chapters": []}`,
		`{"title": "", "chapters": []}`,
		`{"title": 3, "chapters": []}`,
		`{"title": "Go"}`,
		`{"title": "Go", "chapters": {"a": 1}}`,
	} {
		rec := env.do("POST", "/api/export", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
			continue
		}
		if got := decode[ErrorResponse](t, rec); got.Error != "Invalid payload" {
			t.Errorf("%s: error = %q", body, got.Error)
		}
	}
}

func TestLLMCalls(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	now := time.Now().UTC().Truncate(time.Millisecond)
	calls := []*llmcall.Call{
		{ID: "c1", Timestamp: now.Add(-time.Minute), Operation: "discover", Provider: "groq", Model: "m", Success: true, InputTokens: 40, OutputTokens: 12},
		{ID: "c2", Timestamp: now, Operation: "outline", Provider: "groq", Model: "m", Success: false, Error: "boom", InputTokens: 5},
	}
	if err := env.store.Insert(context.Background(), calls...); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	rec := env.do("GET", "/api/llmcalls", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[LLMCallsResponse](t, rec)
	if list.Total != 2 || list.Calls[0].ID != "c2" {
		t.Errorf("list = %+v", list)
	}
	if want := (CallUsage{Failed: 1, InputTokens: 45, OutputTokens: 12}); list.Usage != want {
		t.Errorf("Usage = %+v, want %+v", list.Usage, want)
	}

	list = decode[LLMCallsResponse](t, env.do("GET", "/api/llmcalls?success=false", ""))
	if list.Total != 1 || list.Calls[0].ID != "c2" {
		t.Errorf("failed-only list = %+v", list)
	}

	if rec := env.do("GET", "/api/llmcalls?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	one := decode[LLMCallResponse](t, env.do("GET", "/api/llmcalls/c1", ""))
	if one.Call == nil || one.Call.Operation != "discover" {
		t.Errorf("get = %+v", one)
	}
	if rec := env.do("GET", "/api/llmcalls/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}

	counts := decode[LLMCallCountsResponse](t, env.do("GET", "/api/llmcalls/counts", ""))
	if counts.Counts["discover"] != 1 || counts.Counts["outline"] != 1 {
		t.Errorf("counts = %v", counts.Counts)
	}
}

func TestPrompts(t *testing.T) {
	env := newTestEnv(t, credits.Config{})

	list := decode[PromptsListResponse](t, env.do("GET", "/api/prompts", ""))
	if len(list.Prompts) == 0 {
		t.Fatal("no prompts registered")
	}

	key := list.Prompts[0].Key
	rec := env.do("GET", "/api/prompts/"+key, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get %s status = %d", key, rec.Code)
	}
	if rec := env.do("GET", "/api/prompts/no.such.prompt", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing prompt status = %d", rec.Code)
	}

	filtered := decode[PromptsListResponse](t, env.do("GET", "/api/prompts?prefix=zzz", ""))
	if len(filtered.Prompts) != 0 {
		t.Errorf("prefix filter = %d prompts", len(filtered.Prompts))
	}
}

func TestUnknownAPIPath(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	if rec := env.do("GET", "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSwagger(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	rec := env.do("GET", "/swagger.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := decode[map[string]any](t, rec)
	if doc["host"] != "example.com" {
		t.Errorf("host = %v, want request host", doc["host"])
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/api/credits", "/api/discover", "/api/export"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("swagger doc missing %s", p)
		}
	}
}

func TestStatic(t *testing.T) {
	env := newTestEnv(t, credits.Config{})
	for _, path := range []string{"/", "/some/client/route"} {
		rec := env.do("GET", path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
			continue
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("<title>Quill</title>")) {
			t.Errorf("GET %s did not serve index.html", path)
		}
	}
}

func TestSettings(t *testing.T) {
	t.Setenv("GROQ_MODEL", "")
	env := newTestEnv(t, credits.Config{})

	list := decode[SettingsResponse](t, env.do("GET", "/api/settings?prefix=credits.", ""))
	if len(list.Settings) == 0 {
		t.Fatal("no credits settings listed")
	}
	for _, s := range list.Settings {
		if !strings.HasPrefix(s.Key, "credits.") {
			t.Errorf("prefix filter leaked %s", s.Key)
		}
		if s.Key == "credits.secret" && s.Value != redacted {
			t.Errorf("credits.secret = %v, want redacted", s.Value)
		}
	}

	rec := env.do("GET", "/api/settings/llm.model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got := decode[Setting](t, rec); got.Value != "test-model" {
		t.Errorf("llm.model = %v, want test-model", got.Value)
	}

	if rec := env.do("GET", "/api/settings/no.such.key", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown key status = %d", rec.Code)
	}
	if rec := env.do("GET", "/api/settings/bad$key", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid key status = %d", rec.Code)
	}
}
