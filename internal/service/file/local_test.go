package file

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-analytics/internal/apperr"
)

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "/files/")
	require.NoError(t, err)

	path, err := s.Save(ctx, &SaveRequest{
		FileName: "rows.json",
		Reader:   strings.NewReader(`{"columns":[]}`),
		Prefix:   "datasets",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "datasets/"))
	assert.True(t, strings.HasSuffix(path, ".json"))
	assert.Equal(t, "/files/"+path, s.GetURL(path))

	data, err := ReadAll(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, `{"columns":[]}`, string(data))

	require.NoError(t, s.Delete(ctx, path))
	require.NoError(t, s.Delete(ctx, path), "deleting twice is not an error")

	_, err = s.Get(ctx, path)
	assert.True(t, apperr.IsNotFound(err))
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "../../etc/passwd")
	assert.True(t, apperr.IsValidation(err))
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		want        string
	}{
		{"from name", "data.csv", "application/json", ".csv"},
		{"from content type", "", "application/json", ".json"},
		{"unknown", "", "application/x-foo", ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extension(tt.fileName, tt.contentType))
		})
	}
}
