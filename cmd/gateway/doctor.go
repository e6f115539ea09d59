package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

// padLabel right-pads label to width columns, measuring by display
// width rather than byte/rune count so provider or channel names
// containing wide (e.g. CJK) characters still line up.
func padLabel(label string, width int) string {
	pad := width - runewidth.StringWidth(label)
	if pad <= 0 {
		return label
	}
	return label + strings.Repeat(" ", pad)
}

func runDoctor() {
	fmt.Println("gateway doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults will be used)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	if cfg.IsManagedMode() {
		fmt.Println()
		fmt.Println("  Database:")
		fmt.Printf("    %s managed (postgres)\n", padLabel("Mode:", 14))
		m, err := newMigrator(cfg.Database.PostgresDSN)
		if err != nil {
			fmt.Printf("    %s CONNECT FAILED (%s)\n", padLabel("Status:", 14), err)
		} else {
			version, dirty, vErr := m.Version()
			if vErr != nil {
				fmt.Printf("    %s %v\n", padLabel("Schema:", 14), vErr)
			} else if dirty {
				fmt.Printf("    %s v%d (DIRTY — run: gateway migrate force %d)\n", padLabel("Schema:", 14), version, version-1)
			} else {
				fmt.Printf("    %s v%d\n", padLabel("Schema:", 14), version)
			}
			srcErr, dbErr := m.Close()
			if srcErr != nil {
				fmt.Printf("    (migration source close error: %s)\n", srcErr)
			}
			if dbErr != nil {
				fmt.Printf("    (migration db close error: %s)\n", dbErr)
			}
		}
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkProvider("Anthropic", cfg.Providers.Anthropic.APIKey)
	checkProvider("OpenAI", cfg.Providers.OpenAI.APIKey)
	checkProvider("OpenRouter", cfg.Providers.OpenRouter.APIKey)
	checkProvider("Gemini", cfg.Providers.Gemini.APIKey)
	checkProvider("Groq", cfg.Providers.Groq.APIKey)
	checkProvider("DeepSeek", cfg.Providers.DeepSeek.APIKey)
	checkProvider("Mistral", cfg.Providers.Mistral.APIKey)
	checkProvider("XAI", cfg.Providers.XAI.APIKey)
	checkProvider("MiniMax", cfg.Providers.MiniMax.APIKey)
	checkProvider("Cohere", cfg.Providers.Cohere.APIKey)
	checkProvider("Perplexity", cfg.Providers.Perplexity.APIKey)
	checkProvider("DashScope", cfg.Providers.DashScope.APIKey)

	fmt.Println()
	fmt.Println("  Channels:")
	checkChannel("Telegram", cfg.Channels.Telegram.Enabled, cfg.Channels.Telegram.Token != "")
	checkChannel("Discord", cfg.Channels.Discord.Enabled, cfg.Channels.Discord.Token != "")
	checkChannel("Slack", cfg.Channels.Slack.Enabled, cfg.Channels.Slack.BotToken != "")
	checkChannel("WhatsApp", cfg.Channels.WhatsApp.Enabled, cfg.Channels.WhatsApp.BridgeURL != "")

	fmt.Println()
	fmt.Println("  Routing tiers:")
	for _, tier := range []string{"simple", "medium", "complex", "reasoning", "coding"} {
		t, ok := cfg.Routing.Tiers[tier]
		if !ok || t.Model == "" {
			fmt.Printf("    %s (not configured, falls back to agents.defaults.model)\n", padLabel(tier+":", 14))
			continue
		}
		fmt.Printf("    %s %s\n", padLabel(tier+":", 14), t.Model)
	}

	fmt.Println()
	fmt.Println("  External Tools:")
	checkBinary("git")
	checkBinary("curl")

	fmt.Println()
	ws := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	fmt.Printf("  Workspace: %s", ws)
	if _, err := os.Stat(ws); err != nil {
		fmt.Println(" (NOT FOUND, will be created on first run)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	if !cfg.HasAnyProvider() {
		fmt.Println("No provider API key configured — run `gateway configure` before starting the gateway.")
	} else {
		fmt.Println("Doctor check complete.")
	}
}

func checkProvider(name, apiKey string) {
	label := padLabel(name+":", 14)
	if apiKey == "" {
		fmt.Printf("    %s (not configured)\n", label)
		return
	}
	masked := apiKey
	if len(apiKey) > 8 {
		masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
	}
	fmt.Printf("    %s %s\n", label, masked)
}

func checkChannel(name string, enabled, hasCredentials bool) {
	status := "disabled"
	switch {
	case enabled && hasCredentials:
		status = "enabled"
	case enabled:
		status = "enabled (missing credentials)"
	}
	fmt.Printf("    %s %s\n", padLabel(name+":", 14), status)
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %s NOT FOUND\n", padLabel(name+":", 14))
	} else {
		fmt.Printf("    %s %s\n", padLabel(name+":", 14), path)
	}
}
