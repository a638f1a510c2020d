package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shellsage/shellsage/command"
	"github.com/shellsage/shellsage/errors"
)

// CommandRunner executes a confirmed extracted command under the configured
// allow/deny policy. Unlike the model-facing tools it is never advertised
// to a provider; only the agent invokes it, after the heuristic gate and
// either the policy or an explicit user confirmation approved the command.
type CommandRunner struct {
	policy command.Policy
}

func NewCommandRunner(policy command.Policy) *CommandRunner {
	return &CommandRunner{policy: policy}
}

// Permits reports whether cmd may run without asking the user.
func (r *CommandRunner) Permits(cmd string) bool {
	return r.policy.Permits(cmd)
}

// Denied reports whether cmd is blocked outright.
func (r *CommandRunner) Denied(cmd string) bool {
	return r.policy.Denied(cmd)
}

// Run executes the command and returns its combined output.
func (r *CommandRunner) Run(ctx context.Context, cmdLine string) (string, error) {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return "", errors.NewKind(errors.KindTool, "empty command")
	}
	if r.policy.Denied(cmdLine) {
		return "", errors.NewKind(errors.KindTool, "command '%s' is blocked by the deny list", cmdLine)
	}

	// Basic shell-like execution
	parts := strings.Fields(cmdLine)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.WrapKind(err, errors.KindTool, "command execution failed. Output:\n%s", string(output))
	}

	return fmt.Sprintf("Command executed successfully. Output:\n%s", string(output)), nil
}
