package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitric-lab/NEB/internal/config"
	"github.com/mitric-lab/NEB/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	})
	require.NoError(t, err)
	return logger
}

func testServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	s := NewServer(testConfig(t), testLogger(t))
	t.Cleanup(func() { s.Close() })
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	return s, r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func harmonicRequest() map[string]interface{} {
	return map[string]interface{}{
		"surface":            "harmonic",
		"images":             [][]float64{{0, 0, 0}, {1, 0, 0}},
		"states":             []int{0, 0},
		"images_per_segment": 3,
		"tolerance":          1e-4,
		"max_steps":          500,
		"time_step":          0.1,
		"friction":           0.1,
	}
}

// waitForStatus polls the status endpoint until the job leaves the
// pending/running states.
func waitForStatus(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.Eventually(t, func() bool {
		rec := doJSON(t, r, http.MethodGet, "/api/v1/paths/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		body = decodeBody(t, rec)
		status, _ := body["status"].(string)
		return status != "pending" && status != "running"
	}, 10*time.Second, 10*time.Millisecond)
	return body
}

func TestSubmitAndConverge(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", harmonicRequest())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	id, ok := body["path_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	status := waitForStatus(t, r, id)
	assert.Equal(t, "converged", status["status"])

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "terminal status must carry the result")
	images, ok := result["images"].([]interface{})
	require.True(t, ok)
	assert.Len(t, images, 3)
	assert.Less(t, result["avg_force"].(float64), 1e-4)
}

func TestSubmitValidation(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		wantErr string
	}{
		{
			name:    "unknown surface",
			mutate:  func(m map[string]interface{}) { m["surface"] = "morse" },
			wantErr: "unknown surface",
		},
		{
			name:    "single image",
			mutate:  func(m map[string]interface{}) { m["images"] = [][]float64{{0, 0, 0}}; m["states"] = []int{0} },
			wantErr: "need at least 2 images",
		},
		{
			name:    "step budget over cap",
			mutate:  func(m map[string]interface{}) { m["max_steps"] = 1000000 },
			wantErr: "exceeds the configured cap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := harmonicRequest()
			tt.mutate(req)
			rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	_, r := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paths", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusNotFound(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/paths/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", harmonicRequest())
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeBody(t, rec)["path_id"].(string)
	waitForStatus(t, r, id)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/paths/"+id+"/profile?samples=11", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	coords, ok := body["reaction_coordinate"].([]interface{})
	require.True(t, ok)
	assert.Len(t, coords, 11)
	assert.Equal(t, 0.0, coords[0].(float64))
	assert.Equal(t, 1.0, coords[len(coords)-1].(float64))

	energies, ok := body["energies"].([]interface{})
	require.True(t, ok)
	assert.Len(t, energies, 11)
	assert.Contains(t, body, "barrier")
	assert.Contains(t, body, "transition_state")
}

func TestProfileMalformedSamples(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/paths/some-id/profile?samples=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid samples")
}

func TestProfilePolledWhileJobFinishes(t *testing.T) {
	// Hammering the profile endpoint while the relaxation reaches its
	// terminal state must be safe; the race detector guards the overlap of
	// the terminal result write with the profile reads.
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", harmonicRequest())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["path_id"].(string)

	require.Eventually(t, func() bool {
		rec := doJSON(t, r, http.MethodGet, "/api/v1/paths/"+id+"/profile?samples=5", nil)
		return rec.Code == http.StatusOK
	}, 10*time.Second, time.Millisecond)

	status := waitForStatus(t, r, id)
	assert.Equal(t, "converged", status["status"])
}

func TestProfileBeforeFinish(t *testing.T) {
	s, r := testServer(t)

	// A job registered by hand with no result yet.
	job := &PathJob{ID: "pending-job", Status: "running"}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	rec := doJSON(t, r, http.MethodGet, "/api/v1/paths/pending-job/profile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no result yet")
}

func TestCancelFlow(t *testing.T) {
	_, r := testServer(t)

	// A tight tolerance on the double well keeps the job busy long enough
	// to cancel it.
	req := harmonicRequest()
	req["surface"] = "double_well"
	req["images"] = [][]float64{{-1, 0, 0}, {1, 0, 0}}
	req["images_per_segment"] = 20
	req["tolerance"] = 1e-300
	req["max_steps"] = 10000
	req["time_step"] = 0.01

	rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["path_id"].(string)

	rec = doJSON(t, r, http.MethodDelete, "/api/v1/paths/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status := waitForStatus(t, r, id)
	// The race between cancellation and the step budget is benign; either
	// terminal state is acceptable, converged is not.
	assert.Contains(t, []interface{}{"cancelled", "exhausted"}, status["status"])
}

func TestCancelNotFound(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodDelete, "/api/v1/paths/no-such-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelFinishedJob(t *testing.T) {
	s, r := testServer(t)

	job := &PathJob{ID: "done-job", Status: "converged"}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	rec := doJSON(t, r, http.MethodDelete, "/api/v1/paths/done-job", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot cancel")
}

func rpcRequest(method string, params interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
}

func TestJSONRPCFindAndStatus(t *testing.T) {
	_, r := testServer(t)

	rec := doJSON(t, r, http.MethodPost, "/rpc", rpcRequest("path.find", harmonicRequest()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.NotContains(t, body, "error", rec.Body.String())
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	id := result["path_id"].(string)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		rec := doJSON(t, r, http.MethodPost, "/rpc", rpcRequest("path.status", map[string]string{"path_id": id}))
		if rec.Code != http.StatusOK {
			return false
		}
		body := decodeBody(t, rec)
		result, ok := body["result"].(map[string]interface{})
		return ok && result["status"] == "converged"
	}, 10*time.Second, 10*time.Millisecond)

	rec = doJSON(t, r, http.MethodPost, "/rpc", rpcRequest("path.profile", map[string]interface{}{
		"path_id": id,
		"samples": 5,
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.NotContains(t, body, "error", rec.Body.String())
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name     string
		request  interface{}
		wantCode float64
	}{
		{
			name:     "wrong version",
			request:  map[string]interface{}{"jsonrpc": "1.0", "id": 1, "method": "path.find"},
			wantCode: -32600,
		},
		{
			name:     "unknown method",
			request:  rpcRequest("path.teleport", nil),
			wantCode: -32601,
		},
		{
			name:     "missing job",
			request:  rpcRequest("path.status", map[string]string{"path_id": "nope"}),
			wantCode: -32000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, "/rpc", tt.request)
			require.Equal(t, http.StatusOK, rec.Code)

			body := decodeBody(t, rec)
			rpcErr, ok := body["error"].(map[string]interface{})
			require.True(t, ok, rec.Body.String())
			assert.Equal(t, tt.wantCode, rpcErr["code"])
		})
	}
}

func TestJSONRPCParseError(t *testing.T) {
	_, r := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString("{oops"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	rpcErr, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32700), rpcErr["code"])
}

func TestCloseCancelsJobs(t *testing.T) {
	s, r := testServer(t)

	req := harmonicRequest()
	req["tolerance"] = 1e-300
	req["max_steps"] = 10000
	req["time_step"] = 0.01
	req["images_per_segment"] = 20

	rec := doJSON(t, r, http.MethodPost, "/api/v1/paths", req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeBody(t, rec)["path_id"].(string)

	require.NoError(t, s.Close())

	status := waitForStatus(t, r, id)
	assert.Contains(t, []interface{}{"cancelled", "exhausted"}, status["status"])
}
