package terminal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shellsage/shellsage/agent"
	"github.com/shellsage/shellsage/llm"
)

// Terminal handles the terminal/CLI interaction mode for the agent
type Terminal struct {
	agent         *agent.Agent
	showReasoning bool
}

// New creates a new Terminal instance
func New(a *agent.Agent, showReasoning bool) *Terminal {
	return &Terminal{
		agent:         a,
		showReasoning: showReasoning,
	}
}

// Run starts the interactive terminal session
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	// If there's an initial prompt from the command line, use it first
	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}

		// Exit commands
		if userInput == "/quit" || userInput == "/exit" {
			break
		}

		if err := t.processTurn(ctx, userInput); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// processTurn handles a single user input turn
func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	answered := false

	callbacks := agent.ProcessCallbacks{
		OnReasoningDelta: func(delta string) {
			if t.showReasoning {
				fmt.Print(delta)
			}
		},
		OnAnswerDelta: func(delta string) {
			if !answered {
				fmt.Print("Sage: ")
				answered = true
			}
			fmt.Print(delta)
		},
		OnAnnotation: func(a llm.Annotation) {
			if a.Title != "" {
				fmt.Printf("\nSource: %s (%s)\n", a.Title, a.URL)
			} else {
				fmt.Printf("\nSource: %s\n", a.URL)
			}
		},
		OnCommand: func(cmd string) {
			fmt.Printf("\n\nSuggested command: %s\n", cmd)
		},
		ShouldExecuteCommand: func(cmd string) bool {
			fmt.Print("Run it? (y/n): ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			return strings.TrimSpace(strings.ToLower(answer)) == "y"
		},
		OnCommandResult: func(cmd, output string) {
			fmt.Println(output)
		},
		OnWarning: func(warning string) {
			fmt.Printf("Warning: %s\n", warning)
		},
	}

	err := t.agent.ProcessUserInput(ctx, userInput, callbacks)
	if answered {
		fmt.Println()
	}
	return err
}
