package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ToolResult contains the result of a tool execution
type ToolResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

const stderrLogLimit = 2048

// RunTool executes a tool binary with the given arguments and returns its
// result. It handles concurrent pipe reading to prevent buffer deadlocks
// and enforces context timeout with proper subprocess cleanup.
func RunTool(ctx context.Context, binary string, args ...string) (*ToolResult, error) {
	return RunToolStreaming(ctx, nil, binary, args...)
}

// RunToolStreaming behaves like RunTool but additionally invokes onLine
// for every line of output as it arrives, on both streams. Line order is
// preserved within each stream; interleaving across the two streams is
// unspecified, but both are fully drained before the call returns.
func RunToolStreaming(ctx context.Context, onLine func(line string), binary string, args ...string) (*ToolResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	// Set WaitDelay for subprocess cleanup after context cancellation
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &NotFoundError{Tool: binary}
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	// Read stdout and stderr concurrently to prevent deadlocks
	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer

	stdoutDone := make(chan error, 1)
	stderrDone := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(stdoutPipe)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
			stdoutBuf.Write(scanner.Bytes())
			stdoutBuf.WriteByte('\n')
		}
		stdoutDone <- scanner.Err()
	}()

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
			stderrBuf.Write(scanner.Bytes())
			stderrBuf.WriteByte('\n')
		}
		stderrDone <- scanner.Err()
	}()

	// Wait for both readers to finish before Wait closes the pipes
	<-stdoutDone
	<-stderrDone

	err = cmd.Wait()

	result := &ToolResult{
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err != nil {
		// Context cancellation is expected, return result with error
		if ctx.Err() != nil {
			return result, fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		return result, &ExitError{
			Argv:     append([]string{binary}, args...),
			ExitCode: result.ExitCode,
			Stderr:   truncate(result.Stderr, stderrLogLimit),
		}
	}

	return result, nil
}
