package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/germanamz/contentcrew/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, records ...history.Record) *history.Store {
	t.Helper()

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, r := range records {
		require.NoError(t, store.Save(context.Background(), r))
	}
	return store
}

var (
	older = history.Record{
		ID:          "11111111-aaaa",
		Topic:       "Generative AI in Medicine",
		Temperature: 0.7,
		NumResults:  10,
		Model:       "gpt-4o-mini",
		Status:      history.StatusSucceeded,
		Content:     "# Title\n\nFirst line.\nShared line.\n",
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:    20 * time.Second,
	}
	newer = history.Record{
		ID:          "22222222-bbbb",
		Topic:       "Generative AI in Medicine",
		Temperature: 1.2,
		NumResults:  5,
		Model:       "gpt-4o-mini",
		Status:      history.StatusSucceeded,
		Content:     "# Title\n\nSecond line.\nShared line.\n",
		CreatedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Duration:    30 * time.Second,
	}
	failed = history.Record{
		ID:        "33333333-cccc",
		Topic:     "Robotics",
		Status:    history.StatusFailed,
		Error:     "crew: task 1 (research) by Senior Research Analyst: boom",
		CreatedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}
)

func TestListRuns(t *testing.T) {
	store := newStore(t, older, newer, failed)

	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), store, &buf, 10))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), failed.ID)
	assert.Contains(t, string(lines[0]), history.StatusFailed)
	assert.Contains(t, string(lines[2]), older.ID)
	assert.Contains(t, string(lines[2]), "t=0.7 n=10 20.0s")
}

func TestListRuns_Limit(t *testing.T) {
	store := newStore(t, older, newer, failed)

	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), store, &buf, 1))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestListRuns_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), newStore(t), &buf, 10))
	assert.Contains(t, buf.String(), "No runs recorded yet.")
}

func TestShowRun(t *testing.T) {
	store := newStore(t, older)

	var buf bytes.Buffer
	require.NoError(t, showRun(context.Background(), store, &buf, older.ID))

	out := buf.String()
	assert.Contains(t, out, "Generative AI in Medicine")
	assert.Contains(t, out, "Content Generation Result")
	assert.Contains(t, out, "First line.")
	assert.Contains(t, out, "temperature 0.7")
}

func TestShowRun_Failed(t *testing.T) {
	store := newStore(t, failed)

	var buf bytes.Buffer
	require.NoError(t, showRun(context.Background(), store, &buf, failed.ID))
	assert.Contains(t, buf.String(), "An error occurred: crew: task 1")
}

func TestShowRun_NotFound(t *testing.T) {
	err := showRun(context.Background(), newStore(t), &bytes.Buffer{}, "nope")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestDiffRuns(t *testing.T) {
	store := newStore(t, older, newer)

	var buf bytes.Buffer
	require.NoError(t, diffRuns(context.Background(), store, &buf, older.ID, newer.ID))

	out := buf.String()
	assert.Contains(t, out, "--- Generative_AI_in_Medicine_article.md (11111111, t=0.7)")
	assert.Contains(t, out, "+++ Generative_AI_in_Medicine_article.md (22222222, t=1.2)")
	assert.Contains(t, out, "-First line.")
	assert.Contains(t, out, "+Second line.")
	assert.Contains(t, out, " Shared line.")
}

func TestDiffRuns_Identical(t *testing.T) {
	store := newStore(t, older)

	var buf bytes.Buffer
	require.NoError(t, diffRuns(context.Background(), store, &buf, older.ID, older.ID))
	assert.Contains(t, buf.String(), "identical")
}

func TestDiffRuns_NotFound(t *testing.T) {
	store := newStore(t, older)
	err := diffRuns(context.Background(), store, &bytes.Buffer{}, older.ID, "nope")
	assert.ErrorIs(t, err, history.ErrNotFound)
}
