// Package process runs external media tools (ffmpeg, ffprobe, an ASR
// binary) as child processes with a fully specified argument vector,
// never a shell, and reports their outcome through apperr's taxonomy.
package process

import (
	"bytes"
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/executil"
)

// Result is the captured outcome of a completed invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner resolves tool binaries (configured override, then PATH) and
// runs them with an optional per-call timeout policy.
type Runner struct {
	// Overrides maps a logical tool name ("ffmpeg", "ffprobe", an ASR
	// binary name) to a configured absolute path. Missing entries fall
	// through to PATH resolution.
	Overrides map[string]string
}

// NewRunner builds a Runner with the given name→path overrides.
func NewRunner(overrides map[string]string) *Runner {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return &Runner{Overrides: overrides}
}

// Run resolves name to a binary and executes it with args, enforcing
// timeout if it is non-zero. A non-zero exit status is reported as
// apperr.ToolFailed; an unresolvable binary is apperr.ToolMissing.
func (r *Runner) Run(ctx context.Context, name string, args []string, to time.Duration) (Result, error) {
	path, err := executil.FindBinary(name, r.Overrides[name])
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindToolMissing, name+" is not available", err)
	}

	run := func() (Result, error) {
		cmd := executil.NewCommand(path, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		res := Result{
			ExitCode: cmd.ProcessState.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
		if runErr != nil && res.ExitCode != 0 {
			return res, apperr.ToolFailed(name, res.ExitCode, res.Stderr)
		}
		if runErr != nil {
			return res, apperr.Wrap(apperr.KindToolFailed, name+" failed to start", runErr)
		}
		return res, nil
	}

	if to <= 0 {
		return run()
	}

	policy := timeout.With[Result](to)
	return failsafe.Get(run, policy)
}

// IsInstalled reports whether name resolves to a binary at all, without
// running it.
func (r *Runner) IsInstalled(name string) bool {
	_, err := executil.FindBinary(name, r.Overrides[name])
	return err == nil
}
