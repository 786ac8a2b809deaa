package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"autobot/internal/logging"
)

const maxOutputBytes = 50000

// NewCLITool returns a tool that runs shell commands rooted at workingDir.
// defaultTimeout bounds each command unless the params override it.
func NewCLITool(workingDir string, defaultTimeout time.Duration) *Tool {
	return &Tool{
		Name: "cli",
		Description: "Executes shell commands on the local system. " +
			"Params: command (required), timeout (seconds, optional), working_dir (optional).",
		Execute: func(ctx context.Context, params map[string]string) (string, error) {
			return runCommand(ctx, params, workingDir, defaultTimeout)
		},
	}
}

func runCommand(ctx context.Context, params map[string]string, defaultDir string, defaultTimeout time.Duration) (string, error) {
	command := params["command"]
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := defaultTimeout
	if raw := params["timeout"]; raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	dir := params["working_dir"]
	if dir == "" {
		dir = defaultDir
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.ExecutionDebug("cli: command=%s dir=%s timeout=%s", command, dir, timeout)
	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes] + "\n...[truncated]"
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %s", timeout)
		}
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}
