package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scorekit/adapters/excel"
	"scorekit/adapters/memory"
	"scorekit/app"
	"scorekit/internal/algos"
	"scorekit/internal/builder"
	"scorekit/internal/exec"
	"scorekit/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := algos.Default()
	sc := scoring.NewScorer(exec.NewParallelExecutor(2))
	metrics := memory.NewMetricsRepository()
	svc := app.NewModelService(builder.New(registry, sc), sc, memory.NewModelRepository(metrics), metrics, false)
	srv := httptest.NewServer(NewServer(svc, registry, excel.NewDataReader(), Config{ChunkRows: 8}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func writeCSV(t *testing.T, name string, rows int, withLabel bool) string {
	t.Helper()
	var b strings.Builder
	if withLabel {
		b.WriteString("income,plan,label\n")
	} else {
		b.WriteString("plan,income\n")
	}
	for i := 0; i < rows; i++ {
		plan := []string{"basic", "pro"}[i%2]
		label := "bad"
		if i >= rows/2 {
			label = "good"
		}
		if withLabel {
			fmt.Fprintf(&b, "%d,%s,%s\n", i, plan, label)
		} else {
			fmt.Fprintf(&b, "%s,%d\n", plan, i*8)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func call(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestModelLifecycle(t *testing.T) {
	srv := newTestServer(t)
	train := TrainRequest{
		Algo:       "tree",
		TrainPath:  writeCSV(t, "train.csv", 40, true),
		Parameters: json.RawMessage(`{"response_column":"label","min_rows":2,"score_each_iteration":true}`),
	}

	var trained TrainResponse
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, srv.URL+"/api/models", train, &trained))
	assert.False(t, trained.Reused)
	assert.Equal(t, "Binomial", trained.Model.Category)
	require.Len(t, trained.Metrics, 1)
	key := trained.Model.Key

	var again TrainResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/models", train, &again))
	assert.True(t, again.Reused)
	assert.Equal(t, key, again.Model.Key)

	var list []ModelSummary
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/models", nil, &list))
	assert.Len(t, list, 1)

	// Reordered columns without the response score but record no metrics.
	var scored ScoreResponse
	req := FrameRequest{Path: writeCSV(t, "new.csv", 6, false)}
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/models/"+key+"/score", req, &scored))
	assert.Equal(t, int64(6), scored.Rows)
	require.Len(t, scored.Columns, 3)
	assert.Equal(t, "predict", scored.Columns[0].Name)
	assert.Equal(t, "bad", scored.Columns[0].Labels[0])
	assert.Equal(t, "good", scored.Columns[0].Labels[5])
	assert.Nil(t, scored.Metrics)

	var labelled ScoreResponse
	req = FrameRequest{Path: train.TrainPath}
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/models/"+key+"/score", req, &labelled))
	require.NotNil(t, labelled.Metrics)

	var metrics []json.RawMessage
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/models/"+key+"/metrics", nil, &metrics))
	assert.Len(t, metrics, 2)

	var adapted AdaptResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/models/"+key+"/adapt", req, &adapted))
	assert.Empty(t, adapted.Warnings)

	require.Equal(t, http.StatusNoContent, call(t, http.MethodDelete, srv.URL+"/api/models/"+key, nil, nil))

	var gone ErrorResponse
	require.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/api/models/"+key, nil, &gone))
	assert.Equal(t, "NOT_FOUND", gone.Code)
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)
	trainPath := writeCSV(t, "train.csv", 20, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"missing fields", http.MethodPost, "/api/models", TrainRequest{Algo: "tree"}, http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"unknown algo", http.MethodPost, "/api/models", TrainRequest{Algo: "deeplearning", TrainPath: trainPath}, http.StatusNotImplemented, "UNIMPLEMENTED"},
		{"unknown parameter", http.MethodPost, "/api/models", TrainRequest{Algo: "tree", TrainPath: trainPath, Parameters: json.RawMessage(`{"depth":3}`)}, http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"missing response", http.MethodPost, "/api/models", TrainRequest{Algo: "tree", TrainPath: trainPath}, http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"missing file", http.MethodPost, "/api/models", TrainRequest{Algo: "tree", TrainPath: "/no/such.csv"}, http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"unknown model", http.MethodPost, "/api/models/nope/score", FrameRequest{Path: trainPath}, http.StatusNotFound, "NOT_FOUND"},
		{"bad body", http.MethodPost, "/api/models/nope/score", map[string]int{"rows": 1}, http.StatusUnprocessableEntity, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, tt.status, call(t, tt.method, srv.URL+tt.path, tt.body, &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestScore_IncompatibleFrame(t *testing.T) {
	srv := newTestServer(t)
	var trained TrainResponse
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, srv.URL+"/api/models", TrainRequest{
		Algo:       "tree",
		TrainPath:  writeCSV(t, "train.csv", 20, true),
		Parameters: json.RawMessage(`{"response_column":"label","min_rows":2}`),
	}, &trained))

	// income arrives as text, plan is absent.
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("income\nlow\nhigh\n"), 0o644))

	var resp ErrorResponse
	status := call(t, http.MethodPost, srv.URL+"/api/models/"+trained.Model.Key+"/score", FrameRequest{Path: path}, &resp)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "SCHEMA_INCOMPATIBLE", resp.Code)
	assert.Contains(t, resp.Error, "income")
}
