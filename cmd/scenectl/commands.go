package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/l1jgo/scenes/internal/bundle"
	"github.com/l1jgo/scenes/internal/config"
	"github.com/l1jgo/scenes/internal/data"
	"github.com/l1jgo/scenes/internal/persist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <bundle>...",
		Short: "Print the content digest of bundle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", bundle.Digest(raw), path)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [scene_list.yaml]",
		Short: "Verify that every catalog entry points at a readable, matching bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				path = cfg.Catalog.Path
			}
			table, err := data.LoadSceneTable(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := checkCatalog(table, os.ReadFile)
			bad := make(map[string]bool, len(problems))
			for _, p := range problems {
				bad[p.SceneID] = true
				fmt.Fprintf(out, "  %s %s: %v\n", color.RedString("✗"), p.SceneID, p.Err)
			}
			for _, id := range table.IDs() {
				if !bad[id] {
					fmt.Fprintf(out, "  %s %s\n", color.GreenString("✓"), id)
				}
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d of %d scenes failed", len(bad), table.Count())
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <scene>",
		Short: "Show recent lifecycle events for a scene from the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return fmt.Errorf("database is disabled in %s", cfgFile)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := persist.NewJournalRepo(db).Recent(ctx, args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-18s %s  %s\n",
					e.OccurredAt.Format(time.RFC3339), e.Kind, color.CyanString(e.Host), e.CallID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

// problem is one catalog entry that would fail to load.
type problem struct {
	SceneID string
	Err     error
}

// checkCatalog performs the same read, digest and decode steps as the
// loader, without instantiating anything.
func checkCatalog(table *data.SceneTable, readFile func(string) ([]byte, error)) []problem {
	var problems []problem
	for _, id := range table.IDs() {
		e := table.Get(id)
		raw, err := readFile(table.BundlePath(e))
		if err != nil {
			problems = append(problems, problem{id, err})
			continue
		}
		if sum := bundle.Digest(raw); e.Digest != "" && sum != e.Digest {
			problems = append(problems, problem{id, fmt.Errorf("%w: have %s", bundle.ErrDigestMismatch, sum)})
			continue
		}
		m, err := bundle.Decode(raw, e.Encoding)
		if err != nil {
			problems = append(problems, problem{id, err})
			continue
		}
		if m.Scene != "" && m.Scene != id {
			problems = append(problems, problem{id, fmt.Errorf("bundle %s declares scene %s", filepath.Base(e.Bundle), m.Scene)})
		}
	}
	return problems
}
