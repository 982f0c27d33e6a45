package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipkit/clipkit/internal/apperr"
)

func TestRunner_MissingBinary(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.Run(context.Background(), "clipkit-does-not-exist-binary", nil, 0)
	assert.Equal(t, apperr.KindToolMissing, apperr.KindOf(err))
}

func TestRunner_IsInstalled(t *testing.T) {
	r := NewRunner(nil)
	assert.True(t, r.IsInstalled("sh"))
	assert.False(t, r.IsInstalled("clipkit-does-not-exist-binary"))
}

func TestRunner_OverridePathWins(t *testing.T) {
	r := NewRunner(map[string]string{"sh": "/bin/sh"})
	res, err := r.Run(context.Background(), "sh", []string{"-c", "exit 0"}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunner_NonZeroExit(t *testing.T) {
	r := NewRunner(map[string]string{"sh": "/bin/sh"})
	_, err := r.Run(context.Background(), "sh", []string{"-c", "exit 7"}, 0)
	e, ok := apperr.As(err)
	if assert.True(t, ok) {
		assert.Equal(t, apperr.KindToolFailed, e.Kind)
		assert.Equal(t, 7, e.ExitCode)
	}
}
