package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ebook_generator/config"
	"ebook_generator/generator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 5001, MaxUploadMB: 8},
		LLM:    config.LLMConfig{GoogleModel: "gemini-2.5-pro", OpenAIModel: "gpt-4o-mini"},
		Output: config.OutputConfig{Dir: t.TempDir(), Filename: "ebook.pdf"},
	}
}

type upload struct {
	name string
	data []byte
}

func newRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate_ebook", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// stubFactory hands out llm and counts how often it was asked to.
type stubFactory struct {
	llm   generator.LLMClient
	err   error
	calls atomic.Int32
	creds generator.Credentials
}

func (f *stubFactory) build(_ context.Context, creds generator.Credentials) (generator.LLMClient, error) {
	f.calls.Add(1)
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	return f.llm, nil
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestGenerateEndToEnd(t *testing.T) {
	llm := &generator.MockLLM{Responses: map[generator.Stage]string{
		generator.StageAnalysis: "Themes: history, mission.",
		generator.StageDraft:    "# Company\n\nHistory draft.",
		generator.StageEdit:     "# Company\n\nOur history and mission.\n\n" + generator.PageBreakTag + "\n\n## Mission\n\nTo serve.",
	}}
	factory := &stubFactory{llm: llm}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "Company history and mission statement",
		"personality":    "formal",
		"google_api_key": "g-key",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ebook.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.Equal(t, []generator.Stage{generator.StageAnalysis, generator.StageDraft, generator.StageEdit}, llm.Calls())
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-pro", "gemini-2.5-pro"}, llm.Models())
	assert.Contains(t, llm.Prompts()[0].System, `"formal"`)
	assert.Equal(t, "g-key", factory.creds.GoogleAPIKey)
}

func TestGenerateMissingTextMakesNoProviderCall(t *testing.T) {
	factory := &stubFactory{llm: &generator.MockLLM{}}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "   ",
		"google_api_key": "g-key",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "text content")
	assert.Zero(t, factory.calls.Load())
}

func TestGenerateWithoutCredentials(t *testing.T) {
	factory := &stubFactory{llm: &generator.MockLLM{}}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{"text_content": "Some text"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "API key")
	assert.Zero(t, factory.calls.Load())
}

func TestGenerateProviderInitFailure(t *testing.T) {
	factory := &stubFactory{err: errors.New("malformed key")}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "Some text",
		"openai_api_key": "bad",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "malformed key")
}

func TestGenerateEmptyDraftFails(t *testing.T) {
	llm := &generator.MockLLM{Responses: map[generator.Stage]string{
		generator.StageAnalysis: "summary",
		generator.StageDraft:    "",
	}}
	factory := &stubFactory{llm: llm}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "Some text",
		"google_api_key": "g-key",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "draft")
	assert.Equal(t, []generator.Stage{generator.StageAnalysis, generator.StageDraft}, llm.Calls())
}

func TestGenerateOpenAIModels(t *testing.T) {
	llm := &generator.MockLLM{Provider: generator.ProviderOpenAI}
	factory := &stubFactory{llm: llm}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "Some text",
		"openai_api_key": "sk-key",
		"openai_model":   "gpt-4.1",
		"output_path":    "books/annual-report",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="annual-report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []string{"gpt-4.1", "gpt-4.1"}, llm.Models())
}

func TestGenerateGoogleEditModel(t *testing.T) {
	llm := &generator.MockLLM{}
	s := New(testConfig(t), WithLLMFactory((&stubFactory{llm: llm}).build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":      "Some text",
		"google_api_key":    "g-key",
		"google_model":      "gemini-2.5-flash",
		"google_edit_model": "gemini-2.5-pro",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash", "gemini-2.5-pro"}, llm.Models())
}

func TestGenerateUploadsBecomeReferences(t *testing.T) {
	llm := &generator.MockLLM{}
	s := New(testConfig(t), WithLLMFactory((&stubFactory{llm: llm}).build))

	rec := serve(t, s, newRequest(t,
		map[string]string{"text_content": "Some text", "google_api_key": "g-key"},
		upload{name: "notes.txt", data: []byte("Founded in 1999.")},
		upload{name: "contract.docx", data: []byte("PK\x03\x04 ignored")},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := llm.Prompts()[0].System
	assert.Contains(t, analysis, "Founded in 1999.")
	assert.NotContains(t, analysis, "ignored")
}

func TestGenerateOnlyUnsupportedUploads(t *testing.T) {
	llm := &generator.MockLLM{}
	s := New(testConfig(t), WithLLMFactory((&stubFactory{llm: llm}).build))

	rec := serve(t, s, newRequest(t,
		map[string]string{"text_content": "Some text", "google_api_key": "g-key"},
		upload{name: "contract.docx", data: []byte("PK\x03\x04")},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, llm.Prompts()[0].System, "**Additional references:**\nNone")
}

func TestGenerateMalformedPDFUpload(t *testing.T) {
	factory := &stubFactory{llm: &generator.MockLLM{}}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t,
		map[string]string{"text_content": "Some text", "google_api_key": "g-key"},
		upload{name: "broken.pdf", data: []byte("not a pdf at all")},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "broken.pdf")
	assert.Zero(t, factory.calls.Load())
}

func TestGenerateRejectsEscapingOutputPath(t *testing.T) {
	factory := &stubFactory{llm: &generator.MockLLM{}}
	s := New(testConfig(t), WithLLMFactory(factory.build))

	rec := serve(t, s, newRequest(t, map[string]string{
		"text_content":   "Some text",
		"google_api_key": "g-key",
		"output_path":    "../../etc/book.pdf",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "output path")
	assert.Zero(t, factory.calls.Load())
}

func TestResolveOutputName(t *testing.T) {
	dir := t.TempDir()
	cfg := config.OutputConfig{Dir: dir, Filename: "ebook.pdf"}

	tests := []struct {
		requested string
		want      string
		wantErr   bool
	}{
		{requested: "", want: "ebook.pdf"},
		{requested: "report.pdf", want: "report.pdf"},
		{requested: "sub/dir/report", want: "report.pdf"},
		{requested: "notes.txt", want: "notes.txt"},
		{requested: "./a/../b.pdf", want: "b.pdf"},
		{requested: filepath.Join(string(filepath.Separator), "tmp", "abs.pdf"), want: "abs.pdf"},
		{requested: "~/books/home.pdf", want: "home.pdf"},
		{requested: "../outside.pdf", wantErr: true},
		{requested: "a/../../outside.pdf", wantErr: true},
		{requested: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			got, err := resolveOutputName(cfg, tt.requested)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s := New(testConfig(t))
	handler := s.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ebook_http_requests_total")
}

func TestStaticFrontend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.StaticDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.StaticDir, "index.html"), []byte("<h1>ebook</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.StaticDir, "app.js"), []byte("console.log(1)"), 0o644))
	handler := New(cfg).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>ebook</h1>")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error.", errorMessage(t, rec))
}
