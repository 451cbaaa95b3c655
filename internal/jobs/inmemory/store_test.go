package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ParseJob{JobID: "j1", Filename: "a.pdf", Data: []byte("x"), Status: jobs.JobStatusPending}
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got.Data)

	// Callers get copies.
	got.Status = jobs.JobStatusFailed
	again, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)

	job.Status = jobs.JobStatusCompleted
	require.NoError(t, store.SaveJob(ctx, job))
	finished, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Nil(t, finished.Data)
}

func TestStore_Errors(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	assert.Error(t, store.SaveJob(ctx, &jobs.ParseJob{}))

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusPending, jobs.JobStatusCompleted} {
		require.NoError(t, store.SaveJob(ctx, &jobs.ParseJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all oldest first", jobs.JobFilter{}, []string{"a", "b", "c"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"a", "c"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"a", "b"}},
		{"offset", jobs.JobFilter{Offset: 1}, []string{"b", "c"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(list))
			for _, j := range list {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
