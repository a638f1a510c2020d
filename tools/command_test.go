package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/shellsage/shellsage/command"
)

func TestCommandRunnerRun(t *testing.T) {
	r := NewCommandRunner(command.Policy{Allow: []string{"echo *"}})

	out, err := r.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "Command executed successfully.") {
		t.Errorf("Unexpected output prefix: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("Command output missing: %q", out)
	}
}

func TestCommandRunnerDeniedCommand(t *testing.T) {
	r := NewCommandRunner(command.Policy{
		Allow: []string{"*"},
		Deny:  []string{"rm *"},
	})

	if _, err := r.Run(context.Background(), "rm everything"); err == nil {
		t.Error("Expected deny-listed command to be refused")
	}
	if !r.Denied("rm everything") {
		t.Error("Denied should report the blocked command")
	}
	if r.Permits("rm everything") {
		t.Error("Permits must not allow a deny-listed command")
	}
	if !r.Permits("echo hi") {
		t.Error("Permits should allow a command matching the allow list")
	}
}

func TestCommandRunnerEmptyCommand(t *testing.T) {
	r := NewCommandRunner(command.Policy{})
	if _, err := r.Run(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty command")
	}
}

func TestCommandRunnerFailedCommandIncludesOutput(t *testing.T) {
	r := NewCommandRunner(command.Policy{})
	_, err := r.Run(context.Background(), "false")
	if err == nil {
		t.Fatal("Expected error for failing command")
	}
	if !strings.Contains(err.Error(), "command execution failed") {
		t.Errorf("Unexpected error message: %v", err)
	}
}
