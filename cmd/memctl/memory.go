package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/memory"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain the agent memory database",
	}
	cmd.AddCommand(memoryInitCmd())
	cmd.AddCommand(memoryStatusCmd())
	cmd.AddCommand(memorySearchCmd())
	cmd.AddCommand(memoryEntitiesCmd())
	cmd.AddCommand(memoryEntityCmd())
	cmd.AddCommand(memoryForgetCmd())
	cmd.AddCommand(memoryDoctorCmd())
	return cmd
}

func openMemoryStore() *memory.Store {
	cfg := loadConfig()
	store, err := memory.Open(memoryDBPath(cfg), slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "memctl: failed to open memory store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func memoryInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the memory database and its schema if missing",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			path := memoryDBPath(cfg)
			store, err := memory.Open(path, slog.Default())
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			defer store.Close()
			fmt.Printf("memory database ready at %s\n", path)
		},
	}
}

func memoryStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print row counts and pending extraction backlog",
		Run: func(cmd *cobra.Command, args []string) {
			store := openMemoryStore()
			defer store.Close()
			stats, err := store.GetStats()
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("events:              %d\n", stats.Events)
			fmt.Printf("entities:            %d\n", stats.Entities)
			fmt.Printf("edges:               %d\n", stats.Edges)
			fmt.Printf("facts:               %d\n", stats.Facts)
			fmt.Printf("topics:              %d\n", stats.Topics)
			fmt.Printf("summary_nodes:       %d\n", stats.SummaryNodes)
			fmt.Printf("learnings:           %d\n", stats.Learnings)
			fmt.Printf("pending_extractions: %d\n", stats.PendingExtractions)
		},
	}
}

func memorySearchCmd() *cobra.Command {
	var sessionKey string
	var limit int
	var threshold float64
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recalled events by embedding similarity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openMemoryStore()
			defer store.Close()

			embedder := memory.NewHashEmbedder()
			vec, err := embedder.Embed(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: embed query: %v\n", err)
				os.Exit(1)
			}
			results, err := store.SearchEvents(vec, sessionKey, limit, threshold)
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return
			}
			for _, r := range results {
				fmt.Printf("%.3f  [%s] %s\n", r.Similarity, r.Event.Timestamp.Format("2006-01-02 15:04"), truncate(r.Event.Content, 100))
			}
		},
	}
	cmd.Flags().StringVar(&sessionKey, "session", "", "restrict to a session key")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.3, "minimum cosine similarity")
	return cmd
}

func memoryEntitiesCmd() *cobra.Command {
	var entityType string
	var limit int
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List known entities",
		Run: func(cmd *cobra.Command, args []string) {
			store := openMemoryStore()
			defer store.Close()

			var entities []memory.Entity
			var err error
			if entityType != "" {
				entities, err = store.GetEntitiesByType(entityType, limit)
			} else {
				entities, err = store.GetAllEntities(limit)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			for _, e := range entities {
				fmt.Printf("%s  %-12s %s (seen %d times)\n", e.ID, e.EntityType, e.Name, e.EventCount)
			}
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "filter by entity type (person, organization, location, concept, tool)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func memoryEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <id-or-name>",
		Short: "Show one entity's detail, including facts and relations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openMemoryStore()
			defer store.Close()

			e, err := store.GetEntity(args[0])
			if err != nil || e == nil {
				e, err = store.FindEntityByName(args[0])
			}
			if err != nil || e == nil {
				fmt.Fprintf(os.Stderr, "memctl: entity not found: %s\n", args[0])
				os.Exit(1)
			}

			fmt.Printf("%s  %s (%s)\n", e.ID, e.Name, e.EntityType)
			if e.Description != "" {
				fmt.Printf("  %s\n", e.Description)
			}
			if len(e.Aliases) > 0 {
				fmt.Printf("  aliases: %v\n", e.Aliases)
			}
			fmt.Printf("  seen %d times, first %s, last %s\n", e.EventCount,
				e.FirstSeen.Format("2006-01-02"), e.LastSeen.Format("2006-01-02"))

			if facts, err := store.GetFactsForSubject(e.ID, 20); err == nil && len(facts) > 0 {
				fmt.Println("  facts:")
				for _, f := range facts {
					fmt.Printf("    %s %s (confidence %.2f)\n", f.Predicate, f.ObjectText, f.Confidence)
				}
			}
			if edges, err := store.GetEdgesForEntity(e.ID, 20); err == nil && len(edges) > 0 {
				fmt.Println("  relations:")
				for _, edge := range edges {
					fmt.Printf("    %s -> %s (%s)\n", edge.SourceEntityID, edge.TargetEntityID, edge.Relation)
				}
			}
		},
	}
}

func memoryForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <learning-id>",
		Short: "Delete one recorded learning by id",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openMemoryStore()
			defer store.Close()
			if err := store.DeleteLearning(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("learning %s forgotten\n", args[0])
		},
	}
}

func memoryDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check memory database health and compact it",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			path := memoryDBPath(cfg)
			if _, err := os.Stat(path); err != nil {
				fmt.Printf("memory database: NOT FOUND at %s\n", path)
				return
			}
			store := openMemoryStore()
			defer store.Close()

			stats, err := store.GetStats()
			if err != nil {
				fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("memory database: %s (OK)\n", path)
			fmt.Printf("  %d events, %d entities, %d learnings, %d pending extraction\n",
				stats.Events, stats.Entities, stats.Learnings, stats.PendingExtractions)

			decayed, err := store.DecayLearnings(memory.DefaultLearningConfig())
			if err != nil {
				fmt.Fprintf(os.Stderr, "  decay pass failed: %v\n", err)
			} else if decayed > 0 {
				fmt.Printf("  decayed %d stale learnings\n", decayed)
			}

			if err := store.Vacuum(); err != nil {
				fmt.Fprintf(os.Stderr, "  vacuum failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("  vacuum complete")
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
