//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/cli/admin"
	"github.com/cloo-solutions/studycompanion/internal/config"
	"github.com/cloo-solutions/studycompanion/internal/database"
	"github.com/cloo-solutions/studycompanion/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	fakeDimensions   = 64
	classifierMarker = "educational subject classifier"
	fakeAnswerPrefix = "FAKE ANSWER: "
	migrationsSource = "file://../../migrations"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	Config     *config.Config
	App        *admin.App
	ServerURL  string
	OpenAI     *FakeOpenAI
	BinaryDir  string
	HTTPClient *http.Client
}

// EnvOption adjusts the STUDY_ environment before config is loaded.
type EnvOption func(t *testing.T)

// WithAsyncProcessing leaves uploads pending for the processing worker.
func WithAsyncProcessing() EnvOption {
	return func(t *testing.T) {
		t.Setenv("STUDY_PROCESSING_MODE", "async")
		t.Setenv("STUDY_WORKER_POLL_INTERVAL", "200ms")
	}
}

// WithS3 stores document content in a RustFS container instead of Postgres.
func WithS3(ctx context.Context) EnvOption {
	return func(t *testing.T) {
		c := testutil.NewRustFSContainer(ctx, t)
		t.Cleanup(func() { _ = c.Terminate(context.Background()) })
		t.Setenv("STUDY_S3_ENDPOINT", c.Endpoint())
		t.Setenv("STUDY_S3_ACCESS_KEY_ID", testutil.RustFSCredential)
		t.Setenv("STUDY_S3_SECRET_ACCESS_KEY", testutil.RustFSCredential)
		t.Setenv("STUDY_S3_BUCKET", "study-e2e")
	}
}

// SetupE2EEnv starts Postgres, a fake OpenAI endpoint and the fully wired server.
func SetupE2EEnv(t *testing.T, opts ...EnvOption) *E2ETestEnv {
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	fake := NewFakeOpenAI()
	t.Cleanup(fake.Close)

	t.Setenv("STUDY_DATABASE_URL", pc.ConnectionString())
	t.Setenv("STUDY_OPENAI_API_KEY", "sk-e2e")
	t.Setenv("STUDY_OPENAI_BASE_URL", fake.URL()+"/v1")
	t.Setenv("STUDY_EMBEDDING_DIMENSIONS", fmt.Sprint(fakeDimensions))
	t.Setenv("STUDY_CHUNK_SIZE", "200")
	t.Setenv("STUDY_CHUNK_OVERLAP", "40")
	t.Setenv("STUDY_MAX_CHUNKS", "3")
	t.Setenv("STUDY_SIGNUP_ENABLED", "true")
	for _, opt := range opts {
		opt(t)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, err := database.Migrate(cfg.DatabaseURL, migrationsSource); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 8})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	app, err := admin.NewApp(ctx, cfg, pool)
	if err != nil {
		t.Fatalf("failed to wire app: %v", err)
	}

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		Config:     cfg,
		App:        app,
		ServerURL:  srv.URL,
		OpenAI:     fake,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	return env
}

// StartWorker runs the processing worker until the test ends.
func (e *E2ETestEnv) StartWorker() {
	if e.App.Worker == nil {
		e.T.Fatal("processing worker is only wired in async mode")
	}
	ctx, cancel := context.WithCancel(e.Ctx)
	go e.App.Worker.Start(ctx)
	e.T.Cleanup(func() {
		cancel()
		e.App.Worker.Stop()
	})
}

// CreateUser signs up a user and returns its ID and API token.
func (e *E2ETestEnv) CreateUser(name string) (string, string) {
	userResp, err := e.Post("/users", map[string]string{"name": name}, "")
	if err != nil {
		e.T.Fatalf("failed to create user: %v", err)
	}
	var user struct {
		ID string `json:"id"`
	}
	mustDecode(e.T, userResp, &user)

	keyResp, err := e.Post("/apikeys", map[string]string{"user_id": user.ID, "name": name + "-key"}, "")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	var key struct {
		Token string `json:"token"`
	}
	mustDecode(e.T, keyResp, &key)
	return user.ID, key.Token
}

// BuildBinaries builds the study and studyd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir := e.T.TempDir()
	e.BinaryDir = tmpDir

	for _, name := range []string{"study", "studyd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunStudy runs the study CLI against the test server.
func (e *E2ETestEnv) RunStudy(token string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "study"), args...)
	cmd.Env = append(os.Environ(),
		"STUDY_API_KEY="+token,
		"STUDY_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+e.T.TempDir(),
		"HOME="+e.T.TempDir(),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// HTTPError is returned for responses with status >= 400.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, "", token)
}

func (e *E2ETestEnv) Post(path string, body any, token string) (*APIResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return e.doRequest(http.MethodPost, path, bytes.NewReader(data), "application/json", token)
}

func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, "", token)
}

// Upload posts content as a multipart document upload.
func (e *E2ETestEnv) Upload(token, filename, content string, fields map[string]string) (*APIResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	_, _ = io.WriteString(part, content)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return e.doRequest(http.MethodPost, "/documents", &buf, w.FormDataContentType(), token)
}

func (e *E2ETestEnv) doRequest(method, path string, body io.Reader, contentType, token string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
	}
	if resp.StatusCode >= 400 {
		return apiResp, &HTTPError{StatusCode: resp.StatusCode, Message: apiResp.Error}
	}
	return apiResp, nil
}

func mustDecode(t *testing.T, resp *APIResponse, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to decode response %s: %v", resp.Data, err)
	}
}

// FakeOpenAI serves deterministic embeddings and completions.
// Embeddings are hashed bags of words, so texts sharing words are close.
type FakeOpenAI struct {
	srv             *httptest.Server
	embeddingCalls  atomic.Int64
	completionCalls atomic.Int64
	failEmbeddings  atomic.Bool
	failCompletions atomic.Bool
}

func NewFakeOpenAI() *FakeOpenAI {
	f := &FakeOpenAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", f.embeddings)
	mux.HandleFunc("POST /v1/chat/completions", f.completions)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *FakeOpenAI) URL() string { return f.srv.URL }
func (f *FakeOpenAI) Close()      { f.srv.Close() }

// FailEmbeddings makes every embedding call return 500 until reset.
func (f *FakeOpenAI) FailEmbeddings(fail bool) { f.failEmbeddings.Store(fail) }

// FailCompletions makes every completion call return 500 until reset.
func (f *FakeOpenAI) FailCompletions(fail bool) { f.failCompletions.Store(fail) }

func (f *FakeOpenAI) EmbeddingCalls() int64  { return f.embeddingCalls.Load() }
func (f *FakeOpenAI) CompletionCalls() int64 { return f.completionCalls.Load() }

func (f *FakeOpenAI) embeddings(w http.ResponseWriter, r *http.Request) {
	f.embeddingCalls.Add(1)
	if f.failEmbeddings.Load() {
		http.Error(w, `{"error":{"message":"upstream down","type":"server_error"}}`, http.StatusInternalServerError)
		return
	}

	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": bagOfWords(text)}
	}
	writeFakeJSON(w, map[string]any{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-ada-002",
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func (f *FakeOpenAI) completions(w http.ResponseWriter, r *http.Request) {
	f.completionCalls.Add(1)
	if f.failCompletions.Load() {
		http.Error(w, `{"error":{"message":"upstream down","type":"server_error"}}`, http.StatusInternalServerError)
		return
	}

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var content string
	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(last, classifierMarker):
		content = "PRIMARY: science\nSECONDARY: none\nCONFIDENCE: 9\nREASONING: about nature"
	default:
		content = fakeAnswerPrefix + firstLine(last)
	}

	writeFakeJSON(w, map[string]any{
		"id":      "chatcmpl-e2e",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func bagOfWords(text string) []float32 {
	vec := make([]float64, fakeDimensions)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(word) < 3 {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%fakeDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, fakeDimensions)
	if norm == 0 {
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
