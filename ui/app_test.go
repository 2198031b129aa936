package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peerscan/domain/anomaly"
	"peerscan/internal/errors"
	"peerscan/internal/testkit"
	"peerscan/internal/worker"
	"peerscan/models"
)

type MockRunSource struct {
	mock.Mock
}

func (m *MockRunSource) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RunSummary), args.Error(1)
}

func (m *MockRunSource) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisRun), args.Error(1)
}

func completedRun(t *testing.T) *models.AnalysisRun {
	t.Helper()
	ds, err := testkit.NewCaseDataGenerator(testkit.DefaultCaseConfig()).Generate()
	require.NoError(t, err)
	req := ds.Request(anomaly.DefaultOptions())
	resp := worker.NewDefault(0, nil).Handle(context.Background(), req)
	require.True(t, resp.OK(), resp.Error)
	run, err := models.NewAnalysisRun(req, resp, 15*time.Millisecond)
	require.NoError(t, err)
	return run
}

func get(t *testing.T, a *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndexListsRuns(t *testing.T) {
	run := completedRun(t)
	source := new(MockRunSource)
	source.On("ListRuns", mock.Anything, 100).Return([]models.RunSummary{run.Summary()}, nil)

	a, err := NewApp(source, Config{}, nil)
	require.NoError(t, err)

	w := get(t, a, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "/runs/"+run.ID.String())
	assert.Contains(t, body, run.Fingerprint.Short())
	assert.Contains(t, body, "</html>")
	source.AssertExpectations(t)
}

func TestIndexEmpty(t *testing.T) {
	source := new(MockRunSource)
	source.On("ListRuns", mock.Anything, 20).Return([]models.RunSummary{}, nil)

	a, err := NewApp(source, Config{PageSize: 20}, nil)
	require.NoError(t, err)

	w := get(t, a, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No runs recorded yet.")
}

func TestRunPageRendersReport(t *testing.T) {
	run := completedRun(t)
	source := new(MockRunSource)
	source.On("GetRun", mock.Anything, run.ID.String()).Return(run, nil)

	a, err := NewApp(source, Config{}, nil)
	require.NoError(t, err)

	w := get(t, a, "/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "Case Processing Summary")
	assert.Contains(t, body, "Anomaly Index Summary")
	assert.NotContains(t, body, "&lt;table&gt;")

	w = get(t, a, "/runs/"+run.ID.String()+"/report.md")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "### Anomaly Case Index List")
}

func TestRunPageShowsError(t *testing.T) {
	req := &anomaly.Request{}
	resp := anomaly.Failure(assert.AnError)
	run, err := models.NewAnalysisRun(req, resp, time.Millisecond)
	require.NoError(t, err)

	source := new(MockRunSource)
	source.On("GetRun", mock.Anything, run.ID.String()).Return(run, nil)
	a, err := NewApp(source, Config{}, nil)
	require.NoError(t, err)

	w := get(t, a, "/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), assert.AnError.Error())

	w = get(t, a, "/runs/"+run.ID.String()+"/report.md")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRunPageNotFound(t *testing.T) {
	source := new(MockRunSource)
	source.On("GetRun", mock.Anything, "missing").Return(nil, errors.NotFound("run missing"))
	a, err := NewApp(source, Config{}, nil)
	require.NoError(t, err)

	w := get(t, a, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	a, err := NewApp(new(MockRunSource), Config{AllowedOrigins: []string{"http://example.test"}}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	a.ServeHTTP(w, req)

	assert.Equal(t, "http://example.test", w.Header().Get("Access-Control-Allow-Origin"))
}
