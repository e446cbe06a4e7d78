package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nKappa,-0.2\nPogChamp,0.9\nLUL,0.6\n")

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Size())

	score, ok := cat.Score("PogChamp")
	require.True(t, ok)
	assert.Equal(t, 0.9, score)
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Size())

	_, ok := cat.Score("Kappa")
	assert.False(t, ok)
}

func TestLoad_BadHeader(t *testing.T) {
	path := writeCatalog(t, "Name,Score\nKappa,-0.2\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestScore_LowercaseFallback(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nkappa,-0.2\n")

	cat, err := Load(path)
	require.NoError(t, err)

	score, ok := cat.Score("KAPPA")
	require.True(t, ok)
	assert.Equal(t, -0.2, score)
}

func TestScore_ExactBeatsLowercase(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nKappa,0.5\nkappa,-0.5\n")

	cat, err := Load(path)
	require.NoError(t, err)

	score, ok := cat.Score("Kappa")
	require.True(t, ok)
	assert.Equal(t, 0.5, score)
}

func TestReload(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nKappa,-0.2\n")

	cat, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Size())

	require.NoError(t, os.WriteFile(path, []byte("EmoteName,SentimentScore\nKappa,-0.2\nLUL,0.6\n"), 0o644))

	count, err := cat.Reload()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	score, ok := cat.Score("LUL")
	require.True(t, ok)
	assert.Equal(t, 0.6, score)
}

func TestReload_MissingFileFails(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nKappa,-0.2\n")

	cat, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	_, err = cat.Reload()
	assert.Error(t, err)
	// The old catalog stays usable after a failed reload.
	assert.Equal(t, 1, cat.Size())
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	path := writeCatalog(t, "EmoteName,SentimentScore\nKappa,notanumber\n,0.5\nLUL,0.6\n")

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Size())

	_, ok := cat.Score("Kappa")
	assert.False(t, ok)
}
