package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/agent"
	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/dispatch"
)

// agentCmd runs an interactive session against the default room,
// standing up the same bootstrap sequence as `gateway run` (newGateway)
// but driving one bot's agent.Loop directly from stdin instead of
// starting the bus/channel adapters — the spec's §6 "agent starts an
// interactive session against the default room".
func agentCmd() *cobra.Command {
	var (
		botName string
		message string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start an interactive session against the default room",
		Run: func(cmd *cobra.Command, args []string) {
			runAgentCLI(botName, message)
		},
	}

	cmd.Flags().StringVarP(&botName, "bot", "b", "", "bot id to chat with (default: the leader bot)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for an interactive REPL)")
	return cmd
}

func runAgentCLI(botName, message string) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.HasAnyProvider() {
		fmt.Fprintln(os.Stderr, "No AI provider API key configured. Run `gateway configure` or set a provider env var.")
		os.Exit(1)
	}

	gw, err := newGateway(cfg, cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting agent: %v\n", err)
		os.Exit(1)
	}
	if gw.bg != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go gw.bg.Run(ctx)
	}

	if botName == "" {
		botName = cfg.ResolveDefaultAgentID()
	}
	loop, ok := gw.loops[botName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no bot named %q is configured\n", botName)
		os.Exit(1)
	}

	sessionKey := "room:" + dispatch.DefaultRoomID

	run := func(content string) (string, error) {
		result, err := loop.Run(context.Background(), agent.RunRequest{
			SessionKey: sessionKey,
			Content:    content,
			Channel:    "cli",
			ChatID:     "local",
			RunID:      "cli-" + uuid.NewString()[:8],
		})
		if err != nil {
			return "", err
		}
		return result.Content, nil
	}

	if message != "" {
		resp, err := run(message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		return
	}

	fmt.Fprintf(os.Stderr, "nanobridge — interactive session\n")
	fmt.Fprintf(os.Stderr, "Bot: %s | Room: %s\n", botName, dispatch.DefaultRoomID)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/new\" to clear the session, \"/help\" for help\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "you> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}

		resp, err := run(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", resp)
	}
}
