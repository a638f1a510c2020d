// Package terminal implements the command-line interface (CLI) mode for shellsage.
//
// This package provides an interactive terminal-based user interface where
// users can ask questions and watch the answer stream in, with command tags
// already removed. Extracted commands that pass the heuristic gate are
// offered for confirmed execution, and their output feeds back into the
// conversation.
//
// # Usage
//
// To use the terminal interface, create an agent instance and pass it to the terminal:
//
//	a := agent.New(cfg, sess, client, runner, searchTool, mode, effort)
//
//	term := terminal.New(a, showReasoning)
//	err := term.Run(ctx, initialPrompt)
//
// # Features
//
//   - Streaming answers rendered as they arrive
//   - Optional rendering of model reasoning
//   - Support for initial prompts from command-line arguments
//   - Command execution confirmation in prompt mode
//   - Session management with conversation history
//   - Exit commands (/quit, /exit) for graceful termination
//
// # Modes
//
// The terminal respects the agent's operation mode:
//
//   - Auto mode: Commands matching the configured allow patterns run
//     without confirmation
//   - Prompt mode: User is prompted for confirmation before each execution
package terminal
