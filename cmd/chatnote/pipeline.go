package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/config"
	"github.com/hurttlocker/chatnote/internal/extract"
	"github.com/hurttlocker/chatnote/internal/llm"
	"github.com/hurttlocker/chatnote/internal/notes"
	"github.com/hurttlocker/chatnote/internal/transcript"
)

// now is replaced in tests to pin date-stamped file names.
var now = time.Now

func newScanCmd(g *globalFlags) *cobra.Command {
	var noRepair, clean bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find trigger messages and save each with its context as a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{
				"input":     config.KeyMessagesDir,
				"trigger":   config.KeyTrigger,
				"radius":    config.KeyRadius,
				"notes-dir": config.KeyNotesDir,
			})
			if err != nil {
				return err
			}
			s := e.settings

			messages, err := chat.Load(s.MessagesDir, chat.LoadOptions{Repair: !noRepair})
			if err != nil {
				return err
			}
			e.log.Debug().Int("messages", len(messages)).Str("input", s.MessagesDir).Msg("loaded messages")

			found := notes.Scan(messages, notes.Trigger{Phrase: s.Trigger, Radius: s.Radius})
			store := notes.Store{Dir: s.NotesDir}

			n := 0
			if len(found) == 0 {
				if !e.json {
					fmt.Fprintf(e.out, "No messages containing %q found in %d messages\n", s.Trigger, len(messages))
				}
			} else {
				n, err = store.WriteAll(found, func(k int, path string) {
					if !e.json {
						fmt.Fprintf(e.out, "Saved note %d to %s\n", k, path)
					}
				})
				if err != nil {
					fmt.Fprintf(e.out, "%d of %d notes saved\n", n, len(found))
					return err
				}
			}

			// Ordinals above n belong to an earlier scan; render and
			// extract would pick them up as if they were current.
			var stale []notes.OrdinalFile
			if clean {
				stale, err = store.Prune(n)
			} else {
				stale, err = store.Stale(n)
			}
			if err != nil {
				return err
			}
			if len(stale) > 0 && !clean {
				e.log.Warn().
					Int("stale", len(stale)).
					Str("dir", s.NotesDir).
					Msgf("%d notes from an earlier scan remain (%s..%s); rerun with --clean to remove them",
						len(stale), stale[0].Name, stale[len(stale)-1].Name)
			}

			if e.json {
				return printJSON(e.out, map[string]any{
					"messages": len(messages),
					"notes":    n,
					"dir":      s.NotesDir,
					"stale":    len(stale),
					"removed":  clean,
				})
			}
			if n > 0 {
				fmt.Fprintf(e.out, "%d of %d notes saved\n", n, len(found))
			}
			if clean && len(stale) > 0 {
				fmt.Fprintf(e.out, "Removed %d stale notes\n", len(stale))
			}
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "messages directory or a single export file")
	cmd.Flags().String("trigger", "", "trigger phrase (default \"ghi sổ\")")
	cmd.Flags().Int("radius", notes.DefaultRadius, "messages of context on each side")
	cmd.Flags().String("notes-dir", "", "directory for note_<k>.json files")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "do not repair mis-encoded text")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove notes left over from an earlier, larger scan")
	return cmd
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render saved notes as readable conversation transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{
				"notes-dir":         config.KeyNotesDir,
				"conversations-dir": config.KeyConversationsDir,
			})
			if err != nil {
				return err
			}
			s := e.settings

			renderer, err := transcript.NewRenderer(s.Reactions...)
			if err != nil {
				return fmt.Errorf("loading reaction patterns: %w", err)
			}
			stored, err := notes.Store{Dir: s.NotesDir}.ReadAll()
			if err != nil {
				return err
			}

			written := 0
			for _, sn := range stored {
				path, err := transcript.Write(s.ConversationsDir, renderer.Render(sn.Ordinal, sn.Note))
				if err != nil {
					fmt.Fprintf(e.out, "%d of %d transcripts written\n", written, len(stored))
					return err
				}
				written++
				if !e.json {
					fmt.Fprintf(e.out, "Saved conversation %d to %s\n", sn.Ordinal, path)
				}
			}
			if e.json {
				return printJSON(e.out, map[string]any{"notes": len(stored), "transcripts": written, "dir": s.ConversationsDir})
			}
			fmt.Fprintf(e.out, "%d of %d transcripts written\n", written, len(stored))
			return nil
		},
	}

	cmd.Flags().String("notes-dir", "", "directory holding note_<k>.json files")
	cmd.Flags().String("conversations-dir", "", "directory for conversation_<k>.md files")
	return cmd
}

func newCombineCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Join every transcript into one dated document",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{
				"conversations-dir": config.KeyConversationsDir,
				"output-dir":        config.KeyOutputDir,
			})
			if err != nil {
				return err
			}
			s := e.settings

			body, n, err := transcript.Combine(s.ConversationsDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
				return &notes.WriteError{Path: s.OutputDir, Err: err}
			}
			path := filepath.Join(s.OutputDir, fmt.Sprintf("all_conversations_%s.md", now().Format("2006-01-02")))
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				return &notes.WriteError{Path: path, Err: err}
			}

			if e.json {
				return printJSON(e.out, map[string]any{"transcripts": n, "path": path})
			}
			fmt.Fprintf(e.out, "Combined %d conversations into %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().String("conversations-dir", "", "directory holding conversation_<k>.md files")
	cmd.Flags().String("output-dir", "", "directory for the combined file")
	return cmd
}

// llmFlags are the provider overrides shared by extract and ping.
var llmFlags = flagKeys{
	"provider": config.KeyProvider,
	"model":    config.KeyModel,
	"base-url": config.KeyBaseURL,
	"timeout":  config.KeyTimeout,
}

func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "LLM provider: openai, openrouter, google")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().String("base-url", "", "OpenAI-compatible endpoint")
	cmd.Flags().String("timeout", "", "per-request timeout, e.g. 90s")
}

func newExtractCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Ask the LLM for the place or event behind each note",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := flagKeys{
				"notes-dir":         config.KeyNotesDir,
				"extracted-dir":     config.KeyExtractedDir,
				"trigger":           config.KeyTrigger,
				"continue-on-error": config.KeyContinueOnError,
				"concurrency":       config.KeyConcurrency,
			}
			for name, key := range llmFlags {
				keys[name] = key
			}
			e, err := setup(cmd, g, keys)
			if err != nil {
				return err
			}
			s := e.settings

			provider, err := llm.NewProvider(s.LLM)
			if err != nil {
				return err
			}
			renderer, err := transcript.NewRenderer(s.Reactions...)
			if err != nil {
				return fmt.Errorf("loading reaction patterns: %w", err)
			}
			stored, err := notes.Store{Dir: s.NotesDir}.ReadAll()
			if err != nil {
				return err
			}

			x := &extract.Extractor{
				Provider:        provider,
				Trigger:         s.Trigger,
				Renderer:        renderer,
				Dir:             s.ExtractedDir,
				ContinueOnError: s.ContinueOnError,
				Concurrency:     s.Concurrency,
				Log:             e.log,
				OnStart: func(i, total, ordinal int) {
					if !e.json {
						fmt.Fprintf(e.out, "Processing note %d of %d...\n", i, total)
					}
				},
				OnSaved: func(ordinal int, path string) {
					if !e.json {
						fmt.Fprintf(e.out, "Saved event %d to %s\n", ordinal, path)
					}
				},
			}
			e.log.Info().Str("provider", provider.Name()).Int("notes", len(stored)).Msg("extracting events")

			res, runErr := x.Run(cmd.Context(), stored)
			if e.json {
				failed := make([]int, 0, len(res.Failed))
				for _, f := range res.Failed {
					failed = append(failed, f.Ordinal)
				}
				if err := printJSON(e.out, map[string]any{"total": res.Total, "written": res.Written, "failed": failed}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(e.out, "%d of %d notes processed\n", res.Written, res.Total)
				for _, f := range res.Failed {
					fmt.Fprintf(e.out, "  skipped: %v\n", f)
				}
			}
			return runErr
		},
	}

	cmd.Flags().String("notes-dir", "", "directory holding note_<k>.json files")
	cmd.Flags().String("extracted-dir", "", "directory for event_<k>.md files")
	cmd.Flags().String("trigger", "", "trigger phrase named in the prompt")
	cmd.Flags().Bool("continue-on-error", false, "skip notes the LLM fails on instead of stopping")
	cmd.Flags().Int("concurrency", 1, "completions in flight at once")
	addLLMFlags(cmd)
	return cmd
}

func newAggregateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Collect extracted events into a dated spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, flagKeys{
				"extracted-dir": config.KeyExtractedDir,
				"output-dir":    config.KeyOutputDir,
			})
			if err != nil {
				return err
			}
			s := e.settings

			records, err := aggregate.ReadDir(s.ExtractedDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
				return &notes.WriteError{Path: s.OutputDir, Err: err}
			}
			path := filepath.Join(s.OutputDir, aggregate.FileName(now()))
			if err := aggregate.WriteXLSX(path, records); err != nil {
				return &notes.WriteError{Path: path, Err: err}
			}

			if e.json {
				return printJSON(e.out, map[string]any{"events": records, "path": path})
			}
			fmt.Fprintf(e.out, "Saved %d events to %s\n", len(records), path)
			return nil
		},
	}

	cmd.Flags().String("extracted-dir", "", "directory holding event_<k>.md files")
	cmd.Flags().String("output-dir", "", "directory for the spreadsheet")
	return cmd
}

func newPingCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send one test completion to the configured LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g, llmFlags)
			if err != nil {
				return err
			}
			provider, err := llm.NewProvider(e.settings.LLM)
			if err != nil {
				return err
			}

			start := time.Now()
			reply, err := extract.Ping(cmd.Context(), provider)
			if err != nil {
				return fmt.Errorf("%s: %w", provider.Name(), err)
			}
			if e.json {
				return printJSON(e.out, map[string]any{
					"provider":   provider.Name(),
					"reply":      reply,
					"latency_ms": time.Since(start).Milliseconds(),
				})
			}
			fmt.Fprintf(e.out, "%s replied in %s:\n%s\n", provider.Name(), time.Since(start).Round(time.Millisecond), reply)
			return nil
		},
	}
	addLLMFlags(cmd)
	return cmd
}
