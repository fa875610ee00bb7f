package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chazu/miniplc0/store"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the compiled-program cache",
	}
	cmd.AddCommand(newCacheListCommand())
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := getManifest(cmd.Context())
			s, err := store.Open(m.CachePath())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.Entries(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(w, "(0 entries)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"source hash", "version", "instructions", "hits", "created"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.SourceHash[:16], e.Version, e.Instructions, e.Hits, e.CreatedAt.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			_, _ = fmt.Fprintf(w, "(%d entries)\n", len(entries))
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := getManifest(cmd.Context())
			s, err := store.Open(m.CachePath())
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Clear(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return nil
		},
	}
}
