package app

import (
	"bytes"
	"context"
	"testing"

	"peerscan/adapters/excel"
	"peerscan/domain/anomaly"
	"peerscan/domain/core"
	"peerscan/internal/errors"
	"peerscan/internal/testkit"
	"peerscan/internal/worker"
	"peerscan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, run *models.AnalysisRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id core.RunID) (*models.AnalysisRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*models.AnalysisRun)
	return run, args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*models.AnalysisRun)
	return runs, args.Error(1)
}

func newService(repo *MockRunRepository) *UnusualCaseService {
	if repo == nil {
		return NewUnusualCaseService(worker.NewDefault(0, nil), 2, nil, excel.NewExporter(), nil)
	}
	return NewUnusualCaseService(worker.NewDefault(0, nil), 2, repo, excel.NewExporter(), nil)
}

func generatedRequest(t *testing.T) *anomaly.Request {
	t.Helper()
	ds, err := testkit.NewCaseDataGenerator(testkit.DefaultCaseConfig()).Generate()
	require.NoError(t, err)
	return ds.Request(anomaly.DefaultOptions())
}

func TestAnalyze_PersistsRun(t *testing.T) {
	repo := new(MockRunRepository)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*models.AnalysisRun")).Return(nil).Once()
	svc := newService(repo)

	req := generatedRequest(t)
	outcome := svc.Analyze(context.Background(), req)
	require.True(t, outcome.Response.OK(), outcome.Response.Error)
	assert.NotEmpty(t, outcome.RunID)

	saved := repo.Calls[0].Arguments.Get(1).(*models.AnalysisRun)
	assert.Equal(t, outcome.RunID, saved.ID)
	assert.Equal(t, len(req.Data), saved.RowCount)
	assert.Equal(t, len(req.Data), saved.CaseCount)
	assert.Equal(t, len(outcome.Response.Result.Tables[1].Rows), saved.UnusualCount)

	fp, err := core.Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, fp, saved.Fingerprint)
	repo.AssertExpectations(t)
}

func TestAnalyze_StoreFailureKeepsResponse(t *testing.T) {
	repo := new(MockRunRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.DatabaseError("insert", assert.AnError))
	svc := newService(repo)

	outcome := svc.Analyze(context.Background(), generatedRequest(t))
	assert.True(t, outcome.Response.OK())
	assert.Empty(t, outcome.RunID)
}

func TestAnalyze_WithoutPersistence(t *testing.T) {
	svc := newService(nil)
	assert.False(t, svc.PersistenceEnabled())

	outcome := svc.Analyze(context.Background(), &anomaly.Request{Options: anomaly.DefaultOptions()})
	assert.Equal(t, anomaly.StatusError, outcome.Response.Status)
	assert.Empty(t, outcome.RunID)

	runs, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAnalyzeBatch(t *testing.T) {
	repo := new(MockRunRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil).Times(3)
	svc := newService(repo)

	good := generatedRequest(t)
	outcomes := svc.AnalyzeBatch(context.Background(), []*anomaly.Request{good, {Options: anomaly.DefaultOptions()}, good})
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Response.OK())
	assert.False(t, outcomes[1].Response.OK())
	assert.True(t, outcomes[2].Response.OK())
	for _, o := range outcomes {
		assert.NotEmpty(t, o.RunID)
	}
	repo.AssertExpectations(t)
}

func TestGetRun(t *testing.T) {
	repo := new(MockRunRepository)
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.GetRun(ctx, "not-a-uuid")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	missing := core.NewRunID()
	repo.On("Get", mock.Anything, missing).Return(nil, core.ErrRunNotFound)
	_, err = svc.GetRun(ctx, missing.String())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = newService(nil).GetRun(ctx, missing.String())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestListRuns_DefaultLimit(t *testing.T) {
	repo := new(MockRunRepository)
	run, err := models.NewAnalysisRun(generatedRequest(t), anomaly.Failure(assert.AnError), 0)
	require.NoError(t, err)
	repo.On("List", mock.Anything, DefaultListLimit).Return([]*models.AnalysisRun{run}, nil)

	summaries, err := newService(repo).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, run.ID, summaries[0].ID)
	assert.Equal(t, assert.AnError.Error(), summaries[0].Error)
	assert.Len(t, summaries[0].Fingerprint, 12)
}

func TestExportRun(t *testing.T) {
	repo := new(MockRunRepository)
	svc := newService(repo)
	ctx := context.Background()

	req := generatedRequest(t)
	resp := worker.NewDefault(0, nil).Handle(ctx, req)
	require.True(t, resp.OK())
	ok, err := models.NewAnalysisRun(req, resp, 0)
	require.NoError(t, err)
	failed, err := models.NewAnalysisRun(req, anomaly.Failure(assert.AnError), 0)
	require.NoError(t, err)
	repo.On("Get", mock.Anything, ok.ID).Return(ok, nil)
	repo.On("Get", mock.Anything, failed.ID).Return(failed, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportRun(ctx, ok.ID.String(), &buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 7)

	err = svc.ExportRun(ctx, failed.ID.String(), &bytes.Buffer{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
