package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/config"
	"github.com/hurttlocker/chatnote/internal/mcp"
	"github.com/hurttlocker/chatnote/internal/notes"
	"github.com/hurttlocker/chatnote/internal/store"
	"github.com/hurttlocker/chatnote/internal/transcript"
)

func openStore(e *env) (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: e.settings.DBPath})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Import messages, notes and events into the searchable archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{
				"input":         config.KeyMessagesDir,
				"notes-dir":     config.KeyNotesDir,
				"extracted-dir": config.KeyExtractedDir,
				"db":            config.KeyDBPath,
			})
			if err != nil {
				return err
			}
			s := e.settings
			ctx := cmd.Context()

			messages, err := chat.Load(s.MessagesDir, chat.LoadOptions{Repair: true})
			if err != nil {
				return err
			}

			st, err := openStore(e)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.ImportMessages(ctx, s.MessagesDir, messages)
			if err != nil {
				return err
			}
			runs, err := st.ListImportRuns(ctx)
			if err != nil {
				return err
			}

			// Notes and events are optional: a fresh export has neither.
			stored, err := notes.Store{Dir: s.NotesDir}.ReadAll()
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := st.SaveNotes(ctx, stored); err != nil {
				return err
			}
			records, err := aggregate.ReadDir(s.ExtractedDir)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := st.SaveEvents(ctx, records); err != nil {
				return err
			}

			if e.json {
				return printJSON(e.out, map[string]any{
					"run_id":   run.ID,
					"messages": run.Total,
					"added":    run.Added,
					"notes":    len(stored),
					"events":   len(records),
					"imports":  len(runs),
					"db":       s.DBPath,
				})
			}
			fmt.Fprintf(e.out, "Imported %d messages (%d new) into %s\n", run.Total, run.Added, s.DBPath)
			fmt.Fprintf(e.out, "Indexed %d notes and %d events\n", len(stored), len(records))
			fmt.Fprintf(e.out, "Archive holds %d imports, latest %s\n", len(runs), runs[0].ImportedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "messages directory or a single export file")
	cmd.Flags().String("notes-dir", "", "directory holding note_<k>.json files")
	cmd.Flags().String("extracted-dir", "", "directory holding event_<k>.md files")
	cmd.Flags().String("db", "", "archive database path")
	return cmd
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over the archived messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{"db": config.KeyDBPath})
			if err != nil {
				return err
			}
			st, err := openStore(e)
			if err != nil {
				return err
			}
			defer st.Close()

			query := strings.Join(args, " ")
			results, err := st.SearchMessages(cmd.Context(), query, limit)
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}

			if e.json {
				return printJSON(e.out, results)
			}
			if len(results) == 0 {
				fmt.Fprintf(e.out, "No results for %q\n", query)
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(e.out, "#%d  %s  %s\n    %s\n",
					r.Position,
					chat.FormatTimestamp(r.Message.TimestampMS, e.settings.Location),
					r.Message.SenderName,
					r.Snippet,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	cmd.Flags().String("db", "", "archive database path")
	return cmd
}

func newMCPCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the archive to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{"db": config.KeyDBPath})
			if err != nil {
				return err
			}
			s := e.settings

			renderer, err := transcript.NewRenderer(s.Reactions...)
			if err != nil {
				return fmt.Errorf("loading reaction patterns: %w", err)
			}
			st, err := openStore(e)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := mcp.NewServer(mcp.ServerConfig{
				Store:    st,
				Version:  version,
				Trigger:  notes.Trigger{Phrase: s.Trigger, Radius: s.Radius},
				Renderer: &renderer,
				Location: s.Location,
			})
			e.log.Info().Str("db", s.DBPath).Msg("serving MCP over stdio")
			return server.ServeStdio(srv)
		},
	}
	cmd.Flags().String("db", "", "archive database path")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			entries := e.resolved.Entries()
			if e.json {
				return printJSON(e.out, map[string]any{
					"config_path": e.resolved.ConfigPath,
					"env_file":    e.resolved.EnvFile,
					"values":      entries,
					"reactions":   e.resolved.Reactions,
				})
			}

			fmt.Fprintf(e.out, "config file: %s\n", e.resolved.ConfigPath)
			fmt.Fprintf(e.out, "env file:    %s\n\n", e.resolved.EnvFile)
			for _, en := range entries {
				fmt.Fprintf(e.out, "%-26s %-28s %s (%s)\n", en.Key, en.Value, en.Source, en.From)
			}
			for _, r := range e.resolved.Reactions {
				fmt.Fprintf(e.out, "reaction pattern: %s\n", r)
			}
			return nil
		},
	}
}

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chatnote %s (%s, %s)\n", version, commit, buildDate)
			return nil
		},
	}
}
