package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestLoadMissingFile(t *testing.T) {
	s := New[record](t.TempDir(), "daily_test")

	records, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, records)

	records, err = s.LoadCache()
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New[record](t.TempDir(), "daily_test")

	durable := []record{
		{Date: "2023-01-01", Value: 1.5},
		{Date: "2023-01-02", Value: 2.5},
	}
	cache := append(durable, record{Date: "2023-01-03", Value: 0.5})

	require.NoError(t, s.Save(durable, cache))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, durable, got)

	gotCache, err := s.LoadCache()
	require.NoError(t, err)
	assert.Equal(t, cache, gotCache)
}

func TestLoadCacheFallsBackToDurable(t *testing.T) {
	dir := t.TempDir()
	s := New[record](dir, "daily_test")

	durable := []record{{Date: "2023-01-01", Value: 1}}
	require.NoError(t, s.Save(durable, durable))
	require.NoError(t, os.Remove(filepath.Join(dir, "daily_test_cache.json")))

	got, err := s.LoadCache()
	require.NoError(t, err)
	assert.Equal(t, durable, got)
}

func TestSaveOverwrites(t *testing.T) {
	s := New[record](t.TempDir(), "daily_test")

	require.NoError(t, s.Save([]record{{Date: "2023-01-01", Value: 1}}, nil))
	require.NoError(t, s.Save([]record{{Date: "2023-01-02", Value: 2}}, nil))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2023-01-02", got[0].Date)

	// A nil cache is persisted as an empty list, not null.
	gotCache, err := s.LoadCache()
	require.NoError(t, err)
	assert.Empty(t, gotCache)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := New[record](dir, "daily_test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "daily_test.json"), []byte("{not json"), 0o644))

	_, err := s.Load()
	assert.Error(t, err)
}
