package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/tools"
)

// configureCmd exposes the same closed dotted-path schema the
// update_config tool gives the agent (internal/tools/update_config.go)
// as a CLI surface, so an operator can inspect or edit config.json
// without starting the gateway or asking a bot to do it.
func configureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Inspect or edit config.json via the update_config schema",
	}
	cmd.AddCommand(configureListCmd())
	cmd.AddCommand(configureGetCmd())
	cmd.AddCommand(configureSetCmd())
	cmd.AddCommand(configureAppendCmd())
	cmd.AddCommand(configureRemoveCmd())
	return cmd
}

func configureListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configurable dotted path",
		Run: func(cmd *cobra.Command, args []string) {
			paths := tools.ConfigSchemaPaths()
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Println(p)
			}
		},
	}
}

func configureGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print the current value at a config path",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runConfigureOp("get", args[0], "")
		},
	}
}

func configureSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set a config path to value and persist",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runConfigureOp("set", args[0], args[1])
		},
	}
}

func configureAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <path> <value>",
		Short: "Append value to a list-valued config path",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runConfigureOp("append", args[0], args[1])
		},
	}
}

func configureRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path> <value>",
		Short: "Remove value from a list-valued config path",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runConfigureOp("remove", args[0], args[1])
		},
	}
}

func runConfigureOp(op, path, value string) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure: failed to load %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	tool := tools.NewUpdateConfigTool(cfg, cfgPath)
	res := tool.Execute(context.Background(), map[string]interface{}{
		"path": path, "op": op, "value": value,
	})
	if res.IsError {
		fmt.Fprintln(os.Stderr, res.ForLLM)
		os.Exit(1)
	}
	fmt.Println(res.ForLLM)
}
