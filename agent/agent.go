package agent

import (
	"context"
	"fmt"

	"github.com/shellsage/shellsage/command"
	"github.com/shellsage/shellsage/config"
	"github.com/shellsage/shellsage/engine"
	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
	"github.com/shellsage/shellsage/tools"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

// ProcessCallbacks lets an interaction surface observe and steer one turn.
type ProcessCallbacks struct {
	OnReasoningDelta     func(delta string)
	OnAnswerDelta        func(delta string)
	OnAnnotation         func(annotation llm.Annotation)
	OnCommand            func(cmd string)
	ShouldExecuteCommand func(cmd string) bool
	OnCommandResult      func(cmd, output string)
	OnWarning            func(warning string)
}

type Agent struct {
	Config  *config.Config
	Session *session.Session
	Client  llm.Client
	Runner  *tools.CommandRunner
	Tools   *tools.ToolRegistry
	Mode    Mode
	Effort  llm.Effort
}

func New(cfg *config.Config, sess *session.Session, client llm.Client, runner *tools.CommandRunner, registry *tools.ToolRegistry, mode Mode, effort llm.Effort) *Agent {
	return &Agent{
		Config:  cfg,
		Session: sess,
		Client:  client,
		Runner:  runner,
		Tools:   registry,
		Mode:    mode,
		Effort:  effort,
	}
}

// ProcessUserInput runs one turn: the user message goes into the transcript,
// the model's answer streams back through the callbacks with command tags
// removed, and every extracted command that survives the heuristic gate is
// offered for execution.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	a.Session.AddMessage(session.Message{Role: "user", Content: userInput})

	result, err := engine.Stream(ctx, engine.Options{
		Client:          a.Client,
		Model:           a.Config.Model,
		Messages:        a.Session.Messages,
		Effort:          a.Effort,
		Search:          a.Config.Search.Enabled,
		MaxSearchRounds: a.Config.Search.MaxRounds,
		Tools:           a.Tools,
		Callbacks: engine.Callbacks{
			OnReasoningDelta: callbacks.OnReasoningDelta,
			OnAnswerDelta:    callbacks.OnAnswerDelta,
			OnAnnotation:     callbacks.OnAnnotation,
		},
	})
	if err != nil {
		return err
	}

	a.Session.AddMessage(session.Message{
		Role:      "assistant",
		Content:   result.Answer,
		Reasoning: result.Reasoning,
	})
	if err := a.Session.Save(); err != nil {
		a.warn(callbacks, fmt.Sprintf("failed to save session: %v", err))
	}
	if result.Stopped {
		return nil
	}

	for _, cmd := range result.Commands {
		if !command.LooksExecutable(cmd) {
			a.warn(callbacks, fmt.Sprintf("ignoring suggested command that does not look executable: %s", cmd))
			continue
		}
		if a.Runner != nil && a.Runner.Denied(cmd) {
			a.warn(callbacks, fmt.Sprintf("command blocked by deny list: %s", cmd))
			continue
		}
		if callbacks.OnCommand != nil {
			callbacks.OnCommand(cmd)
		}
		if !a.shouldExecute(cmd, callbacks) {
			continue
		}
		a.execute(ctx, cmd, callbacks)
	}

	return nil
}

// shouldExecute decides whether cmd runs now. Auto mode trusts the allow
// patterns; everything else defers to the confirmation callback.
func (a *Agent) shouldExecute(cmd string, callbacks ProcessCallbacks) bool {
	if a.Runner == nil {
		return false
	}
	if a.Mode == ModeAuto && a.Runner.Permits(cmd) {
		return true
	}
	if callbacks.ShouldExecuteCommand != nil {
		return callbacks.ShouldExecuteCommand(cmd)
	}
	return false
}

func (a *Agent) execute(ctx context.Context, cmd string, callbacks ProcessCallbacks) {
	output, err := a.Runner.Run(ctx, cmd)
	if err != nil {
		output = fmt.Sprintf("Error: %v", err)
	}
	if callbacks.OnCommandResult != nil {
		callbacks.OnCommandResult(cmd, output)
	}

	a.Session.AddMessage(session.Message{
		Role:    "user",
		Content: fmt.Sprintf("I ran `%s`. Output:\n%s", cmd, output),
	})
	if err := a.Session.Save(); err != nil {
		a.warn(callbacks, fmt.Sprintf("failed to save session: %v", err))
	}
}

func (a *Agent) warn(callbacks ProcessCallbacks, msg string) {
	if callbacks.OnWarning != nil {
		callbacks.OnWarning(msg)
	}
}
