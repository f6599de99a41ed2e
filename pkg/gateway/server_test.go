package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/harun/mofflow/pkg/runstore"
	"github.com/harun/mofflow/pkg/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRunner(st *workflow.State) WorkflowRunner {
	return func(ctx context.Context, request string) *workflow.State {
		return st
	}
}

func completedState() *workflow.State {
	st := workflow.NewState("find a copper MOF")
	st.Plan = workflow.NewPlan([]string{"search_mof_db"})
	st.Plan.Cursor = 1
	st.Results = []workflow.StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{"mof_name": "HKUST-1"}},
	}
	st.Terminal = workflow.TerminalCompleted
	st.Report = "HKUST-1 found."
	return st
}

func testServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Runner == nil {
		cfg.Runner = stubRunner(completedState())
	}
	cfg.Logger = zerolog.Nop()

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestServer_CreateWorkflow(t *testing.T) {
	srv := testServer(t, Config{})

	body, _ := json.Marshal(WorkflowRequest{Request: "find a copper MOF"})
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp WorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.ThreadID)
	assert.Equal(t, "completed", resp.Terminal)
	assert.Equal(t, []string{"search_mof_db"}, resp.Plan)
	assert.Equal(t, "HKUST-1 found.", resp.FinalText)
}

func TestServer_CreateWorkflowEmptyRequest(t *testing.T) {
	srv := testServer(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateWorkflowKeepsThreadID(t *testing.T) {
	srv := testServer(t, Config{})

	body, _ := json.Marshal(WorkflowRequest{Request: "req", ThreadID: "thread-42"})
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp WorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "thread-42", resp.ThreadID)
}

func TestServer_AuthRequired(t *testing.T) {
	srv := testServer(t, Config{SharedSecret: "hunter2"})

	body, _ := json.Marshal(WorkflowRequest{Request: "req"})

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Token", "hunter2")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_GetWorkflowFromArchive(t *testing.T) {
	store, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	srv := testServer(t, Config{Store: store})

	body, _ := json.Marshal(WorkflowRequest{Request: "find a copper MOF"})
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created WorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req = httptest.NewRequest(http.MethodGet, "/v1/workflows/"+created.ID, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got WorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "HKUST-1 found.", got.FinalText)
}

func TestServer_GetWorkflowNotFound(t *testing.T) {
	store, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	srv := testServer(t, Config{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PhaseHookBroadcasts(t *testing.T) {
	srv := testServer(t, Config{})
	hook := srv.PhaseHook()

	// No clients connected; the hook must still be safe to call.
	st := completedState()
	hook(workflow.PhaseExecuting, st)
	hook(workflow.PhaseTerminal, st)

	assert.Equal(t, 0, srv.Broadcaster().Count())
}

func TestNewServer_RequiresRunner(t *testing.T) {
	_, err := NewServer(Config{Port: 8000, Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestNewServer_RequiresPort(t *testing.T) {
	_, err := NewServer(Config{Runner: stubRunner(completedState()), Logger: zerolog.Nop()})
	assert.Error(t, err)
}
