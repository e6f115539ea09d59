package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/memory"
	"github.com/nanobridge/orchestrator/internal/session"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and maintain per-room session logs",
	}
	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionStatusCmd())
	cmd.AddCommand(sessionCompactCmd())
	cmd.AddCommand(sessionResetCmd())
	return cmd
}

func openSessionManager() *session.Manager {
	cfg := loadConfig()
	mgr, err := session.NewManager(sessionsDir(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "memctl: failed to open session store: %v\n", err)
		os.Exit(1)
	}
	return mgr
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every session on disk, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			mgr := openSessionManager()
			infos, err := mgr.ListSessions()
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			if len(infos) == 0 {
				fmt.Println("no sessions")
				return
			}
			for _, info := range infos {
				fmt.Printf("%-40s updated %s\n", info.Key, info.UpdatedAt.Format("2006-01-02 15:04"))
			}
		},
	}
}

func sessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <key>",
		Short: "Show one session's message count and timestamps",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mgr := openSessionManager()
			s, err := mgr.GetOrCreate(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("key:        %s\n", s.Key)
			fmt.Printf("messages:   %d\n", len(s.Messages))
			fmt.Printf("created:    %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("updated:    %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
		},
	}
}

func sessionCompactCmd() *cobra.Command {
	var targetKeep int
	cmd := &cobra.Command{
		Use:   "compact <key>",
		Short: "Force a compaction pass on one session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			mgr, err := session.NewManager(sessionsDir(cfg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			s, err := mgr.GetOrCreate(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}

			var flusher session.MemoryFlusher
			if store, err := memory.Open(memoryDBPath(cfg), slog.Default()); err == nil {
				defer store.Close()
				flusher = memory.NewSessionFlusher(store, memory.DefaultLearningConfig())
			}

			if targetKeep <= 0 {
				targetKeep = 30
				if cc := cfg.Agents.Defaults.Compaction; cc != nil && cc.KeepLastMessages > 0 {
					targetKeep = cc.KeepLastMessages
				}
			}
			compactor := session.NewCompactor(flusher, 10, targetKeep, slog.Default())
			result := compactor.Compact(s)
			if !result.Compacted {
				fmt.Println("nothing to compact")
				return
			}
			if err := mgr.Save(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "memctl: save: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("compacted %d -> %d messages (%s, ~%d -> ~%d tokens)\n",
				result.OriginalCount, result.CompactedCount, result.Mode, result.TokensBefore, result.TokensAfter)
		},
	}
	cmd.Flags().IntVar(&targetKeep, "keep", 0, "messages to keep after compaction (default from config)")
	return cmd
}

func sessionResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Delete a session's history, starting it fresh",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mgr := openSessionManager()
			if err := mgr.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("session %s reset\n", args[0])
		},
	}
}
