package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-clave/analysis"
	"github.com/RyanBlaney/sonido-clave/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// withStore opens the configured store for the duration of fn
func withStore(ctx *commandContext, fn func(cache.Store) error) error {
	store, err := ctx.openStore()
	if err != nil {
		return fmt.Errorf("open result cache: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show result cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store cache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				cfg, _ := ctx.ensureConfig()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backend: %s\n", stats.Backend)
				fmt.Fprintf(out, "Dir:     %s\n", cfg.Cache.Dir)
				if !cfg.Cache.Enabled {
					fmt.Fprintln(out, "Status:  disabled (set cache.enabled = true to use it)")
				}
				fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
				fmt.Fprintf(out, "Size:    %s\n", humanize.IBytes(uint64(max(stats.Bytes, 0))))
				if stats.Entries > 0 {
					fmt.Fprintf(out, "Oldest:  %s (%s)\n", stats.Oldest.Local().Format(stampLayout), humanize.Time(stats.Oldest))
					fmt.Fprintf(out, "Newest:  %s (%s)\n", stats.Newest.Local().Format(stampLayout), humanize.Time(stats.Newest))
				}
				return nil
			})
		},
	}
}

const stampLayout = "2006-01-02 15:04"

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store cache.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Result cache is empty")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					key, confidence := "unreadable", ""
					var est analysis.KeyEstimate
					if json.Unmarshal(e.Result, &est) == nil {
						key = est.Name()
						confidence = formatPercent(est.Confidence)
					}
					rows = append(rows, []string{
						e.Hash[:12],
						key,
						confidence,
						e.CreatedAt.Local().Format(stampLayout),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Hash", "Key", "Confidence", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash>",
		Short: "Print one cached result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.ToLower(strings.TrimSpace(args[0]))
			return withStore(ctx, func(store cache.Store) error {
				entry, found, err := store.Get(cmd.Context(), hash)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no cached result for %s", hash)
				}
				return writeJSON(cmd, entry)
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store cache.Store) error {
				before, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results (%s)\n", before.Entries, humanize.IBytes(uint64(max(before.Bytes, 0))))
				return nil
			})
		},
	}
}
