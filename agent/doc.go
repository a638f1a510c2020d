// Package agent provides the core turn processing for shellsage.
//
// This package contains the common code and abstractions shared between
// interaction surfaces. It defines the core Agent type and the processing
// logic for handling user input, streaming model output, and vetting and
// executing extracted commands.
//
// # Core Functionality
//
// The Agent type provides:
//
//   - Session management for conversation history
//   - Streaming of reasoning and answer deltas through the engine
//   - Command-tag extraction, heuristic gating and policy checks
//   - Callback-based architecture for different interaction modes
//
// # Usage
//
// To create and use an agent:
//
//	agent := agent.New(cfg, sess, client, runner, searchTool, mode)
//
//	callbacks := agent.ProcessCallbacks{
//	    OnReasoningDelta: func(delta string) {
//	        // Render model thinking as it streams
//	    },
//	    OnAnswerDelta: func(delta string) {
//	        // Render answer text as it streams (command tags removed)
//	    },
//	    OnCommand: func(cmd string) {
//	        // A gate-approved command was extracted
//	    },
//	    ShouldExecuteCommand: func(cmd string) bool {
//	        // Confirm execution (prompt mode)
//	        return true
//	    },
//	    OnCommandResult: func(cmd, output string) {
//	        // Handle execution output
//	    },
//	    OnWarning: func(warning string) {
//	        // Handle non-fatal warnings
//	    },
//	}
//
//	err := agent.ProcessUserInput(ctx, "user message", callbacks)
//
// # Modes
//
// The agent supports two operation modes:
//
//   - ModeAuto: Extracted commands matching the allow patterns are executed
//     without confirmation
//   - ModePrompt: Every execution requires confirmation via callbacks
//
// # Callbacks
//
// The ProcessCallbacks structure allows interaction surfaces to customize
// how agent events are handled, so the same core processing logic serves
// the interactive terminal and one-shot invocations alike.
//
// # Subpackages
//
// agent/terminal: Provides an interactive command-line interface for direct
// user interaction with the agent, including execution confirmations.
package agent
