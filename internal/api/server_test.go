package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/analyzer/rulebased"
	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/pipeline"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/store/memstore"
)

const testKey = "test-key"

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

type testServer struct {
	URL    string
	Client *http.Client
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.Config{
		Auth:     config.AuthConfig{APIKey: testKey},
		Analysis: config.AnalysisConfig{DefaultLanguage: "eng", OutputSet: "Analysis", SentenceWorkers: 2},
		Pipeline: config.PipelineConfig{WorkerCount: 2, MaxQueueSize: 8, JobTTL: time.Hour},
		Upload:   config.UploadConfig{MaxUploadBytes: 1 << 20},
	}

	reg := resource.NewRegistry(rulebased.NewLoader("../../data"), log, time.Hour)
	ann := annotate.New(analysis.New(reg, log), memstore.New(), log, annotate.Defaults{
		Language:  cfg.Analysis.DefaultLanguage,
		OutputSet: cfg.Analysis.OutputSet,
		Workers:   cfg.Analysis.SentenceWorkers,
	})
	orch := pipeline.NewOrchestrator(cfg.Pipeline, ann, log)
	orch.Start(context.Background())

	srv := httptest.NewServer(NewServer(orch, reg, log, cfg))
	t.Cleanup(func() {
		srv.Close()
		orch.Stop()
		reg.Close()
	})
	return &testServer{URL: srv.URL, Client: srv.Client()}
}

func (ts *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) doJSON(t *testing.T, method, path string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return ts.do(t, method, path, "application/json", body)
}

func (ts *testServer) waitJob(t *testing.T, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		code, job := ts.doJSON(t, http.MethodGet, "/api/jobs/"+jobID, nil)
		require.Equal(t, http.StatusOK, code)
		if pipeline.JobStatus(job["status"].(string)).Done() {
			return job
		}
		require.True(t, time.Now().Before(deadline), "job %s did not finish: %v", jobID, job)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthIsPublic(t *testing.T) {
	ts := setupServer(t)
	resp, err := ts.Client.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := setupServer(t)
	for _, header := range []string{"", "Basic abc", "Bearer wrong"} {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/documents", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := ts.Client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestDocumentAnnotationFlow(t *testing.T) {
	ts := setupServer(t)

	code, created := ts.doJSON(t, http.MethodPost, "/api/documents", map[string]string{
		"name":     "cars",
		"text":     "The new car has bigger windows. The dog runs.",
		"language": "english",
	})
	require.Equal(t, http.StatusCreated, code, created)
	docID := created["id"].(string)
	assert.Equal(t, "eng", created["language"])

	code, queued := ts.doJSON(t, http.MethodPost, "/api/documents/"+docID+"/annotate", nil)
	require.Equal(t, http.StatusAccepted, code, queued)
	assert.Equal(t, "/api/jobs/"+queued["job_id"].(string), queued["poll_url"])

	job := ts.waitJob(t, queued["job_id"].(string))
	require.Equal(t, string(pipeline.StatusCompleted), job["status"], job)
	progress := job["progress"].(map[string]any)
	assert.EqualValues(t, 2, progress["parsed"])

	code, tokens := ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"/annotations?type=Token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, tokens["annotations"], 11)

	code, window := ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"/annotations?type=Token&start=4&end=11", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, window["annotations"], 2)

	code, sentences := ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"/sentences", nil)
	require.Equal(t, http.StatusOK, code)
	views := sentences["sentences"].([]any)
	require.Len(t, views, 2)
	assert.Len(t, views[1].(map[string]any)["tokens"], 4)

	code, doc := ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"?content=false", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Analysis"}, doc["sets"])
	assert.NotContains(t, doc, "content")

	code, stats := ts.doJSON(t, http.MethodGet, "/api/stats/processing", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Greater(t, stats["processing_seconds"].(float64), 0.0)
	assert.Equal(t, []any{"eng"}, stats["languages"])
	assert.Equal(t, []any{"eng", "spa", "cat"}, stats["supported"])

	code, reset := ts.doJSON(t, http.MethodDelete, "/api/documents/"+docID+"/annotations", nil)
	require.Equal(t, http.StatusOK, code, reset)
	assert.Greater(t, reset["removed"].(float64), 11.0)
	code, doc = ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"?content=false", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, doc["sets"])

	code, _ = ts.doJSON(t, http.MethodDelete, "/api/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.doJSON(t, http.MethodGet, "/api/documents/"+docID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadAddsMarkup(t *testing.T) {
	ts := setupServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("language", "en"))
	fw, err := mw.CreateFormFile("file", "../notes.md")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "# Cars\n\nThe car has windows.\n\n## Dogs\n\nThe dog runs.\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	code, created := ts.do(t, http.MethodPost, "/api/documents", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusCreated, code, created)
	assert.Equal(t, "notes", created["name"])
	assert.EqualValues(t, 2, created["sections"])
	docID := created["id"].(string)

	code, markup := ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"/annotations?set="+url.QueryEscape(annotate.MarkupSet)+"&type=Section", nil)
	require.Equal(t, http.StatusOK, code)
	sections := markup["annotations"].([]any)
	require.Len(t, sections, 2)
	outer := sections[0].(map[string]any)
	assert.EqualValues(t, 0, outer["start"])
	assert.Equal(t, "Cars", outer["features"].(map[string]any)["title"])

	code, queued := ts.doJSON(t, http.MethodPost, "/api/documents/"+docID+"/annotate", map[string]any{
		"output_set":      "Run",
		"append_language": true,
	})
	require.Equal(t, http.StatusAccepted, code)
	job := ts.waitJob(t, queued["job_id"].(string))
	assert.Equal(t, "Run_eng", job["progress"].(map[string]any)["output_set"])
}

func TestRejections(t *testing.T) {
	ts := setupServer(t)

	code, _ := ts.doJSON(t, http.MethodPost, "/api/documents", map[string]string{"text": "x", "language": "klingon"})
	assert.Equal(t, http.StatusBadRequest, code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "tool.exe")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{0x4d, 0x5a})
	require.NoError(t, mw.Close())
	code, _ = ts.do(t, http.MethodPost, "/api/documents", mw.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.doJSON(t, http.MethodPost, "/api/documents/missing/annotate", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.doJSON(t, http.MethodGet, "/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, created := ts.doJSON(t, http.MethodPost, "/api/documents", map[string]string{"text": "The dog runs."})
	docID := created["id"].(string)
	code, _ = ts.doJSON(t, http.MethodPost, "/api/documents/"+docID+"/annotate", map[string]string{"sentence_set": "Original markups"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.doJSON(t, http.MethodGet, "/api/documents/"+docID+"/annotations?start=5&end=2", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"notes.md":        "notes.md",
		"../../etc/x.txt": "x.txt",
		`C:\tmp\a.pdf`:    "a.pdf",
		"":                "unnamed",
		"a..b.txt":        "a_b.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), fmt.Sprintf("input %q", in))
	}
}
