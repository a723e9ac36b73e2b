// Package executor runs the external tools keyfinder drives (the key
// extractor, calibredb, ebook-convert, fetch-ebook-metadata) with a fixed
// per-invocation timeout and full output capture.
package executor

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/kfxtools/keyfinder/pkg/logging"
)

// Per-item timeout classes. Extraction and import-class operations get
// 60 seconds; format conversion gets 5 minutes.
const (
	DefaultTimeout    = 60 * time.Second
	ConvertTimeout    = 300 * time.Second
	MetadataTimeout   = 10 * time.Second
	ProbeTimeout      = 5 * time.Second
	stderrDrainBudget = 5 * time.Second
)

// Spec describes one external invocation.
type Spec struct {
	Name    string
	Args    []string
	Dir     string        // working directory, optional
	Timeout time.Duration // defaults to DefaultTimeout
}

// Result captures everything the outcome classifiers need: exit status,
// both output streams, timing, and whether the bound was exceeded.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Elapsed  time.Duration

	// Err is set when the process could not be started or waited on
	// (missing binary, I/O failure) or when an output drain failed and
	// Stdout/Stderr may be incomplete, never for a nonzero exit.
	Err error
}

// Ok reports a clean zero exit within the time bound.
func (r Result) Ok() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Run invokes the process synchronously and waits for completion or the
// timeout, whichever comes first. On timeout the process is killed and
// Result.TimedOut is set; any files it wrote must be treated as
// untrusted by the caller.
//
// Stderr is drained on its own goroutine while the calling goroutine
// drains stdout, so a chatty child cannot deadlock on a full pipe. The
// drain is joined, with its own short budget, before Wait is called:
// Wait closes the pipes, so joining later loses buffered stderr.
func Run(ctx context.Context, spec Spec) Result {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.LogCommand(spec.Name, spec.Args)
	log := logging.GetLogger("executor")

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{Err: err, Elapsed: time.Since(start)}
	}

	var stderrBuf strings.Builder
	var stderrErr error
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		_, stderrErr = io.Copy(&stderrBuf, stderrPipe)
	}()

	var stdoutBuf strings.Builder
	_, stdoutErr := io.Copy(&stdoutBuf, stdoutPipe)

	// The stderr drain must be joined before Wait: Wait closes the pipe
	// read ends, dropping any bytes still buffered in the pipe. The
	// builder is only read once the goroutine has finished with it.
	var stderr string
	var drainErr error
	select {
	case <-stderrDone:
		stderr = stderrBuf.String()
		drainErr = stderrErr
	case <-time.After(stderrDrainBudget):
		log.Warn().Str("command", spec.Name).Msg("stderr drain did not finish in time")
	}
	if drainErr == nil {
		drainErr = stdoutErr
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	result := Result{
		Stdout:  stdoutBuf.String(),
		Stderr:  stderr,
		Elapsed: elapsed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result
	}

	result.Err = drainErr

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Err = waitErr
			result.ExitCode = -1
		}
		return result
	}

	return result
}
