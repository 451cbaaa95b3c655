package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/jobs"
	"github.com/dvloznov/statement-parser/internal/jobs/inmemory"
	"github.com/dvloznov/statement-parser/internal/pipeline"
)

// MockRunner is a test double for StatementRunner.
type MockRunner struct {
	RunFunc func(ctx context.Context, in pipeline.Input) (domain.Artifact, error)
	Inputs  []pipeline.Input
}

func (m *MockRunner) Run(ctx context.Context, in pipeline.Input) (domain.Artifact, error) {
	m.Inputs = append(m.Inputs, in)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, in)
	}
	return domain.Artifact{Insights: []string{"ok"}}, nil
}

func fixtureRunner(t *testing.T) *pipeline.Runner {
	t.Helper()
	cfg := config.LoadFrom(func(string) string { return "" })
	return pipeline.NewFromConfig(context.Background(), cfg, nil)
}

func TestParse_TestModeReturnsArtifact(t *testing.T) {
	h := NewStatementsHandler(fixtureRunner(t), nil, 1<<20, zerolog.Nop())
	router := NewRouter(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/statements/parse?test=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 3)
	assert.Contains(t, body, "fields")
	assert.Contains(t, body, "insights")
	assert.Contains(t, body, "quality")
	assert.Contains(t, string(body["fields"]), "HDFC Bank")
}

func TestParse_PassesFilenameAndBody(t *testing.T) {
	runner := &MockRunner{}
	h := NewStatementsHandler(runner, nil, 1<<20, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/statements/parse?filename=../../etc/oct.pdf", strings.NewReader("%PDF-1.7"))
	rec := httptest.NewRecorder()
	h.Parse(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.Inputs, 1)
	assert.Equal(t, "oct.pdf", runner.Inputs[0].Name)
	assert.Equal(t, []byte("%PDF-1.7"), runner.Inputs[0].Data)
	assert.False(t, runner.Inputs[0].TestMode)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		body     string
		runErr   error
		wantCode int
	}{
		{"empty body", "/api/statements/parse", "", nil, http.StatusBadRequest},
		{"bad test flag", "/api/statements/parse?test=maybe", "x", nil, http.StatusBadRequest},
		{"too large", "/api/statements/parse", strings.Repeat("a", 64), nil, http.StatusRequestEntityTooLarge},
		{"unsupported", "/api/statements/parse", "PK", fmtErr(&document.UnsupportedFormatError{Name: "a.zip", Detected: "application/zip"}), http.StatusUnsupportedMediaType},
		{"timeout", "/api/statements/parse", "x", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", "/api/statements/parse", "x", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{RunFunc: func(ctx context.Context, in pipeline.Input) (domain.Artifact, error) {
				return domain.Artifact{}, tt.runErr
			}}
			h := NewStatementsHandler(runner, nil, 32, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.Parse(rec, httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func fmtErr(err error) error {
	return errors.Join(errors.New("pipeline step 1 failed"), err)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(NewStatementsHandler(&MockRunner{}, nil, 1<<20, zerolog.Nop()), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statements/parse", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(NewStatementsHandler(&MockRunner{}, nil, 1<<20, zerolog.Nop()), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestEnqueueParse_Disabled(t *testing.T) {
	h := NewStatementsHandler(&MockRunner{}, nil, 1<<20, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.EnqueueParse(rec, httptest.NewRequest(http.MethodPost, "/api/statements/jobs?test=true", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestJobs_EndToEnd(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(store, inmemory.Options{BufferSize: 4, Workers: 1})
	defer queue.Close()

	statements := NewStatementsHandler(fixtureRunner(t), queue, 1<<20, zerolog.Nop())
	require.NoError(t, queue.Start(context.Background(), statements.ProcessJob))
	router := NewRouter(statements, NewJobsHandler(store, zerolog.Nop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/statements/jobs?test=true&filename=oct.pdf", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/jobs/"+jobID, rec.Header().Get("Location"))

	var job jobs.ParseJob
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		job = jobs.ParseJob{}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, job.Artifact)
	assert.Equal(t, "test", job.Artifact.Quality.ExtractionPath)
	assert.Equal(t, "oct.pdf", job.Filename)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.NotContains(t, rec.Body.String(), `"artifact"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessJob_UnsupportedIsPermanent(t *testing.T) {
	runner := &MockRunner{RunFunc: func(ctx context.Context, in pipeline.Input) (domain.Artifact, error) {
		return domain.Artifact{}, fmtErr(&document.UnsupportedFormatError{Name: in.Name})
	}}
	h := NewStatementsHandler(runner, nil, 1<<20, zerolog.Nop())

	_, err := h.ProcessJob(context.Background(), &jobs.ParseJob{Filename: "a.zip", Data: []byte("PK")})
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.Equal(t, []byte("PK"), runner.Inputs[0].Data)

	runner.RunFunc = func(ctx context.Context, in pipeline.Input) (domain.Artifact, error) {
		return domain.Artifact{}, errors.New("transient")
	}
	_, err = h.ProcessJob(context.Background(), &jobs.ParseJob{})
	assert.False(t, jobs.IsPermanent(err))
}

func TestCleanFilename(t *testing.T) {
	for in, want := range map[string]string{
		"":                    "",
		"oct.pdf":             "oct.pdf",
		"a/b/oct.pdf":         "oct.pdf",
		`C:\docs\oct.pdf`:     "oct.pdf",
		"oct.pdf?sig=abc":     "oct.pdf",
		"../../../etc/passwd": "passwd",
	} {
		assert.Equal(t, want, cleanFilename(in), in)
	}
}
