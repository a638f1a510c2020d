package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shellsage/shellsage/agent"
	"github.com/shellsage/shellsage/agent/terminal"
	"github.com/shellsage/shellsage/command"
	"github.com/shellsage/shellsage/config"
	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
	"github.com/shellsage/shellsage/tools"
	"github.com/shellsage/shellsage/websearch"
)

func main() {
	// Define flags
	providerFlag := flag.String("p", "", "Provider: openai, openrouter, custom, anthropic, gemini or bedrock")
	modelFlag := flag.String("model", "", "Model id to use")
	effortFlag := flag.String("e", "", "Reasoning effort: off, low, medium or high")
	modeFlag := flag.String("m", "", "Execution mode: 'auto' or 'prompt'")
	searchFlag := flag.Bool("search", false, "Enable the web-search tool loop")
	reasoningFlag := flag.Bool("reasoning", false, "Print model reasoning while it streams")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	listModelsFlag := flag.Bool("models", false, "List the provider's models and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *effortFlag != "" {
		cfg.Effort = *effortFlag
	}
	if *searchFlag {
		cfg.Search.Enabled = true
	}

	// Initialize the provider client
	ctx := context.Background()
	registry := llm.DefaultRegistry()
	client, err := registry.New(ctx, cfg.Provider, cfg.BaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.Provider, err)
		os.Exit(1)
	}

	if *listModelsFlag {
		cache := llm.NewModelCache(cfg.CacheTTL())
		models, err := cache.Get(ctx, client.FetchModels)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing models: %+v\n", err)
			os.Exit(1)
		}
		for _, m := range models {
			if m.DisplayName != "" && m.DisplayName != m.ID {
				fmt.Printf("%s\t%s\n", m.ID, m.DisplayName)
			} else {
				fmt.Println(m.ID)
			}
		}
		return
	}

	effort, err := llm.ParseEffort(cfg.Effort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		// Resume session
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
		// Apply session values if not explicitly overridden by user
		if *modeFlag == "" && sess.Mode != "" {
			*modeFlag = sess.Mode
		}
		if *modelFlag == "" && sess.Model != "" {
			cfg.Model = sess.Model
		}
	} else {
		// Start new session
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
	}

	if *modeFlag == "" {
		*modeFlag = cfg.Mode
	}

	// Update session with current values and save
	sess.Provider = cfg.Provider
	sess.Model = cfg.Model
	sess.Mode = *modeFlag
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	// Validate mode
	var opMode agent.Mode
	switch *modeFlag {
	case "auto":
		opMode = agent.ModeAuto
	case "prompt":
		opMode = agent.ModePrompt
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", *modeFlag)
		os.Exit(1)
	}

	runner := tools.NewCommandRunner(command.Policy{
		Allow: cfg.Commands.Allow,
		Deny:  cfg.Commands.Deny,
	})
	toolRegistry := tools.NewToolRegistry()
	toolRegistry.Register(tools.NewWebSearchTool(websearch.New()))

	sageAgent := agent.New(cfg, sess, client, runner, toolRegistry, opMode, effort)

	// Get initial prompt from remaining arguments
	initialPrompt := strings.Join(flag.Args(), " ")

	term := terminal.New(sageAgent, *reasoningFlag)
	if err := term.Run(ctx, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "shellsage"
	}
	dirName := filepath.Base(wd)
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s", dirName, timestamp)
}
