package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_CompletesSuccessfully(t *testing.T) {
	tr := NewTracker()
	tr.Track(context.Background(), "job-1", func(ctx context.Context) (any, error) {
		return "done", nil
	})

	assert.Eventually(t, func() bool {
		s, ok := tr.Status("job-1")
		return ok && s.State == StateCompleted
	}, time.Second, time.Millisecond)

	s, ok := tr.Status("job-1")
	assert.True(t, ok)
	assert.Equal(t, "done", s.Result)
	assert.NoError(t, s.Err)
}

func TestTrack_RecordsFailure(t *testing.T) {
	tr := NewTracker()
	wantErr := errors.New("boom")
	tr.Track(context.Background(), "job-2", func(ctx context.Context) (any, error) {
		return nil, wantErr
	})

	assert.Eventually(t, func() bool {
		s, ok := tr.Status("job-2")
		return ok && s.State == StateFailed
	}, time.Second, time.Millisecond)

	s, _ := tr.Status("job-2")
	assert.Equal(t, wantErr, s.Err)
}

func TestStatus_UnknownJob(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Status("missing")
	assert.False(t, ok)
}

func TestStatus_RunningBeforeCompletion(t *testing.T) {
	tr := NewTracker()
	started := make(chan struct{})
	release := make(chan struct{})
	tr.Track(context.Background(), "job-3", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})

	<-started
	s, ok := tr.Status("job-3")
	assert.True(t, ok)
	assert.Equal(t, StateRunning, s.State)
	close(release)
}
