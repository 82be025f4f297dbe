package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// inheritedEnv whitelists the parent environment variables passed to hook
// scripts. Everything else is stripped.
var inheritedEnv = []string{"PATH", "USER", "SHELL", "LC_ALL", "LANG"}

// requestBodyFile is the name of the file holding the raw request body
// inside the job's working directory.
const requestBodyFile = "request_body"

// ProcessRunner spawns hook scripts as subprocesses. Each job runs in a
// fresh temporary directory which doubles as $HOME; the request body is
// written to a file there and its path exported as FISHER_REQUEST_BODY.
// Provider environment variables are exported as FISHER_<PROVIDER>_<KEY>.
type ProcessRunner struct{}

// NewProcessRunner creates a runner for real hook scripts.
func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{}
}

// Run executes the job's script and waits for it to exit. The returned
// error covers setup and spawn failures; a non-zero exit is reported in the
// Result. The working directory is removed after a successful run and kept
// for inspection otherwise.
func (r *ProcessRunner) Run(ctx context.Context, job *Job) (*Result, error) {
	workdir, err := os.MkdirTemp("", "fisher-")
	if err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}

	bodyPath := filepath.Join(workdir, requestBodyFile)
	body := append(append([]byte(nil), job.Body...), '\n')
	if err := os.WriteFile(bodyPath, body, 0o600); err != nil {
		_ = os.RemoveAll(workdir)
		return nil, fmt.Errorf("writing request body: %w", err)
	}

	cmd := exec.CommandContext(ctx, job.Hook.Exec)
	cmd.Dir = workdir
	cmd.Env = buildEnv(job, workdir, bodyPath)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	result := &Result{
		Output:   output,
		Duration: duration,
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		_ = os.RemoveAll(workdir)
		return nil, fmt.Errorf("spawning %s: %w", job.Hook.Exec, err)
	}

	if result.Success {
		_ = os.RemoveAll(workdir)
	}

	return result, nil
}

// buildEnv assembles the subprocess environment: the inherited whitelist,
// HOME pointed at the working directory, the request body path and the
// prefixed provider variables.
func buildEnv(job *Job, workdir, bodyPath string) []string {
	env := make([]string, 0, len(inheritedEnv)+len(job.Env)+2)

	for _, key := range inheritedEnv {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}

	env = append(env,
		"HOME="+workdir,
		"FISHER_REQUEST_BODY="+bodyPath,
	)

	prefix := "FISHER_" + strings.ToUpper(string(job.Provider)) + "_"
	for key, value := range job.Env {
		env = append(env, prefix+key+"="+value)
	}

	return env
}
