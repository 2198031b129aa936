package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"peerscan/adapters/db"
	"peerscan/adapters/excel"
	"peerscan/app"
	"peerscan/domain/anomaly"
	"peerscan/domain/core"
	"peerscan/internal/migration"
	"peerscan/internal/testkit"
	"peerscan/internal/worker"
	"peerscan/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestRouter(t *testing.T, persist bool) *gin.Engine {
	t.Helper()
	var runs ports.RunRepository
	if persist {
		conn, err := db.Connect(context.Background(), "sqlite", ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, migration.NewRunner().Run(context.Background(), conn))
		runs = db.NewRunRepository(conn)
	}
	svc := app.NewUnusualCaseService(worker.NewDefault(1000, nil), 2, runs, excel.NewExporter(), nil)
	return NewRouter(NewHandler(svc, nil), gin.TestMode)
}

func requestBody(t *testing.T) []byte {
	t.Helper()
	ds, err := testkit.NewCaseDataGenerator(testkit.DefaultCaseConfig()).Generate()
	require.NoError(t, err)
	b, err := json.Marshal(ds.Request(anomaly.DefaultOptions()))
	require.NoError(t, err)
	return b
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpoint(t *testing.T) {
	r := newTestRouter(t, true)

	w := do(r, http.MethodPost, "/api/unusual-cases", requestBody(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp anomaly.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, anomaly.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Tables, 7)
	assert.Equal(t, "Case Processing Summary", resp.Result.Tables[0].Title)

	_, err := core.ParseRunID(w.Header().Get("X-Run-ID"))
	assert.NoError(t, err)
}

func TestAnalyzeEndpoint_ErrorEnvelope(t *testing.T) {
	r := newTestRouter(t, false)

	w := do(r, http.MethodPost, "/api/unusual-cases", []byte(`{"data": [], "analysisVariables": []}`))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "error", gjson.Get(body, "status").String())
	assert.NotEmpty(t, gjson.Get(body, "error").String())
	assert.False(t, gjson.Get(body, "result").Exists())

	w = do(r, http.MethodPost, "/api/unusual-cases", []byte(`{"data": 5`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeEndpoint_RowLimit(t *testing.T) {
	r := newTestRouter(t, false)
	cfg := testkit.DefaultCaseConfig()
	cfg.Rows = 1001
	ds, err := testkit.NewCaseDataGenerator(cfg).Generate()
	require.NoError(t, err)
	body, err := json.Marshal(ds.Request(anomaly.DefaultOptions()))
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/unusual-cases", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "exceed the limit")
}

func TestBatchEndpoint(t *testing.T) {
	r := newTestRouter(t, false)
	good := json.RawMessage(requestBody(t))
	body, err := json.Marshal(map[string]interface{}{
		"requests": []interface{}{good, map[string]interface{}{"data": nil}, good},
	})
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/unusual-cases/batch", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Responses, 3)
	assert.True(t, resp.Responses[0].OK())
	assert.False(t, resp.Responses[1].OK())
	assert.True(t, resp.Responses[2].OK())
	assert.Empty(t, resp.RunIDs)
}

func TestRunEndpoints(t *testing.T) {
	r := newTestRouter(t, true)

	w := do(r, http.MethodPost, "/api/unusual-cases", requestBody(t))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get("X-Run-ID")
	require.NotEmpty(t, id)

	w = do(r, http.MethodGet, "/api/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := gjson.Get(w.Body.String(), "runs")
	require.Len(t, list.Array(), 1)
	assert.Equal(t, id, list.Get("0.id").String())
	assert.Equal(t, "success", list.Get("0.status").String())
	assert.Equal(t, int64(200), list.Get("0.row_count").Int())

	w = do(r, http.MethodGet, "/api/runs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail RunDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.Run.ID.String())
	assert.Len(t, detail.Response.Result.Tables, 7)

	w = do(r, http.MethodGet, "/api/runs/"+id+"/report.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	w = do(r, http.MethodGet, "/api/runs/"+core.NewRunID().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/runs/nope", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodGet, "/api/runs?limit=-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(t, false), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","persistence":false}`, w.Body.String())
}
