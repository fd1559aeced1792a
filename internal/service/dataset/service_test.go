package dataset

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/logger"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/dfcache"
	"github.com/ashwinyue/next-analytics/internal/service/sqlquery"
	"github.com/ashwinyue/next-analytics/internal/testutil"
)

type fixture struct {
	stores  *testutil.MemoryStores
	storage *testutil.MemoryStorage
	cache   *dfcache.Cache
	svc     *Service
}

func newFixture(inlineThreshold int64) *fixture {
	stores, storage := testutil.NewMemoryStores(), testutil.NewMemoryStorage()
	repos := stores.Repositories()
	cache := dfcache.New(repos.Dataset, storage, dfcache.Options{TTL: time.Minute, Size: 10}, logger.Nop())
	return &fixture{
		stores:  stores,
		storage: storage,
		cache:   cache,
		svc:     NewService(repos, storage, cache, sqlquery.NewRunner(100, 0, logger.Nop()), inlineThreshold, logger.Nop()),
	}
}

func (f *fixture) upload(t *testing.T, name, content string) *model.Dataset {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), &UploadRequest{FileName: name, Reader: strings.NewReader(content)})
	require.NoError(t, err)
	return res.Dataset
}

// ========== 上传测试 ==========

func TestUpload_Inline(t *testing.T) {
	f := newFixture(2 << 20)
	res, err := f.svc.Upload(context.Background(), &UploadRequest{
		FileName: "sales.csv",
		Reader:   strings.NewReader(testutil.RegressionCSV(30, 1)),
	})
	require.NoError(t, err)

	ds := res.Dataset
	assert.Equal(t, "sales", ds.Name)
	assert.Equal(t, 30, ds.RowCount)
	assert.Equal(t, 4, ds.ColumnCount)
	assert.Equal(t, model.StorageTypeDirect, ds.StorageType)
	assert.NotEmpty(t, ds.InlineData)
	assert.Empty(t, ds.BlobPath)
	assert.Empty(t, res.BlobURL)
	assert.Len(t, res.Preview, previewRows)
	assert.Equal(t, "float64", ds.ColumnTypes()["target"])

	tb, err := f.cache.Load(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, tb.NumRows())
}

func TestUpload_Blob(t *testing.T) {
	f := newFixture(64)
	res, err := f.svc.Upload(context.Background(), &UploadRequest{
		FileName: "big.csv",
		Reader:   strings.NewReader(testutil.RegressionCSV(50, 2)),
	})
	require.NoError(t, err)
	ds := res.Dataset

	assert.Equal(t, model.StorageTypeBlob, ds.StorageType)
	assert.Equal(t, "mem://"+ds.BlobPath, res.BlobURL)
	assert.True(t, f.storage.Has(ds.BlobPath))
	assert.Empty(t, ds.InlineData)

	tb, err := f.cache.Load(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, tb.NumRows())
}

func TestUpload_Errors(t *testing.T) {
	f := newFixture(2 << 20)
	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{"missing name", "", "a,b\n1,2\n"},
		{"unsupported extension", "report.xlsx", "binary"},
		{"empty json", "empty.json", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), &UploadRequest{FileName: tt.fileName, Reader: strings.NewReader(tt.content)})
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestUpload_StoreFailureCleansBlob(t *testing.T) {
	f := newFixture(16)
	f.stores.Err = assert.AnError
	_, err := f.svc.Upload(context.Background(), &UploadRequest{FileName: "x.csv", Reader: strings.NewReader(testutil.RegressionCSV(10, 1))})
	require.Error(t, err)

	assert.Zero(t, f.storage.Len(), "blob must be removed when metadata cannot be saved")
	f.stores.Err = nil
	list, total, err := f.svc.ListDatasets(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

// ========== 查询测试 ==========

func TestGetDataset(t *testing.T) {
	f := newFixture(2 << 20)
	ds := f.upload(t, "d.csv", testutil.RegressionCSV(20, 3))

	detail, err := f.svc.GetDataset(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.ID, detail.ID)
	assert.Len(t, detail.Preview, previewRows)

	_, err = f.svc.GetDataset(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestListDatasets_Paging(t *testing.T) {
	f := newFixture(2 << 20)
	for i := 0; i < 3; i++ {
		f.upload(t, "d.csv", testutil.RegressionCSV(5, int64(i)))
	}

	page1, total, err := f.svc.ListDatasets(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)

	page2, _, err := f.svc.ListDatasets(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

// ========== 删除测试 ==========

func TestDeleteDataset_Cascade(t *testing.T) {
	f := newFixture(64)
	ctx := context.Background()
	ds := f.upload(t, "big.csv", testutil.RegressionCSV(50, 4))
	repos := f.stores.Repositories()

	require.NoError(t, repos.Workspace.Save(ctx, &model.Workspace{ID: "ws-1", DatasetID: ds.ID, Name: "w", StorageType: model.StorageTypeBlob, BlobPath: "workspaces/ws-1"}))
	require.NoError(t, repos.Training.SaveBatch(ctx, []*model.TrainingMetadata{{ID: "t-1", DatasetID: ds.ID, ModelName: "linear_regression"}}))

	_, err := f.cache.Load(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	require.NoError(t, f.svc.DeleteDataset(ctx, ds.ID))
	assert.False(t, f.storage.Has(ds.BlobPath))
	assert.Zero(t, f.cache.Len())
	assert.Empty(t, f.stores.TrainingRecords())

	_, err = repos.Workspace.GetByID(ctx, "ws-1")
	assert.True(t, apperr.IsNotFound(err))

	err = f.svc.DeleteDataset(ctx, ds.ID)
	assert.True(t, apperr.IsNotFound(err))
}

// ========== 查询测试 ==========

func TestQuery(t *testing.T) {
	f := newFixture(2 << 20)
	ctx := context.Background()
	ds := f.upload(t, "q.csv", testutil.RegressionCSV(20, 5))

	res, err := f.svc.Query(ctx, ds.ID, &QueryRequest{SQL: "SELECT COUNT(*) AS n, MAX(feature1) AS top FROM dataset"})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.EqualValues(t, 20, res.Rows[0]["n"])

	res, err = f.svc.Query(ctx, ds.ID, &QueryRequest{SQL: "SELECT target FROM dataset ORDER BY target", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, res.RowCount)
	assert.True(t, res.Truncated)

	_, err = f.svc.Query(ctx, ds.ID, &QueryRequest{SQL: "  "})
	assert.True(t, apperr.IsValidation(err))
	_, err = f.svc.Query(ctx, "missing", &QueryRequest{SQL: "SELECT * FROM dataset"})
	assert.True(t, apperr.IsNotFound(err))
}
