package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quietroomlabs/haven/pkg/agent"
	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/providers"
	"github.com/quietroomlabs/haven/pkg/store"
)

var (
	version   = "dev"
	gitCommit string
)

const appName = "haven"

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "haven",
		Short: "Therapy-chat companion with crisis safeguards and specialist routing",
		Long: strings.TrimSpace(`haven is a conversational companion shell around an LLM responder.

It detects crisis phrasing before anything else, routes each message to one of
three specialist personas (CBT, Humanistic, Psychoanalytic), and keeps an
append-only conversation log. haven is not a replacement for professional
mental health care.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build/version metadata",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if gitCommit != "" {
				v += fmt.Sprintf(" (git: %s)", gitCommit)
			}
			fmt.Printf("%s %s\n  Go: %s\n", appName, v, runtime.Version())
		},
	}
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Write a default ~/.haven/config.json",
		Example: "  haven onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config already exists at %s\n", path)
				return nil
			}
			if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Wrote default config to %s\n", path)
			fmt.Println("Set providers.openrouter.api_key (or HAVEN_PROVIDERS_OPENROUTER_API_KEY) before chatting.")
			return nil
		},
	}
}

func configPath() string {
	if p := os.Getenv("HAVEN_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".haven", "config.json")
}

// loadRuntime builds the full pipeline from config. Configuration errors
// here are fatal by design: a session never starts half-wired.
func loadRuntime() (*config.Config, *agent.Psychologist, *store.Store, error) {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	table, err := config.LoadKeywordTable(cfg.KeywordsFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load keyword table: %w", err)
	}
	provider, err := providers.FromConfig(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build provider: %w", err)
	}
	logStore, err := store.New(cfg.StoragePath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open conversation store: %w", err)
	}
	return cfg, agent.New(cfg, table, provider, logStore), logStore, nil
}
