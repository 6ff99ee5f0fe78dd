package extraction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore_Lifecycle(t *testing.T) {
	js := NewJobStore(time.Hour)
	defer js.Stop()

	require.Error(t, js.Create(&Job{}))
	require.NoError(t, js.Create(&Job{ID: "job-1", Filename: "a.pdf", Status: JobPending}))

	job, err := js.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	// Returned jobs are copies.
	job.Status = JobFailed
	again, _ := js.Get("job-1")
	assert.Equal(t, JobPending, again.Status)

	require.NoError(t, js.Update("job-1", func(j *Job) { j.Status = JobProcessing }))
	require.NoError(t, js.Finish("job-1", errors.New("boom")))

	job, err = js.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
	assert.NotNil(t, job.CompletedAt)

	assert.Error(t, js.Update("missing", func(*Job) {}))
	_, err = js.Get("missing")
	assert.Error(t, err)
}

func TestJobStore_Evict(t *testing.T) {
	js := NewJobStore(time.Minute)
	defer js.Stop()

	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, js.Create(&Job{ID: "old", CreatedAt: old}))
	require.NoError(t, js.Create(&Job{ID: "new"}))

	js.evict(time.Now())

	_, err := js.Get("old")
	assert.Error(t, err)
	_, err = js.Get("new")
	assert.NoError(t, err)

	js.Stop()
	js.Stop() // idempotent
}
