package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hurttlocker/chatnote/internal/config"
)

var (
	version   = "0.1.0-dev"
	commit    = "none"
	buildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	envFile    string
	verbose    bool
	logJSON    bool
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "chatnote",
		Short: "Turn chat exports into notes, event summaries and documents",
		Long: `chatnote reads Instagram/Messenger JSON chat exports and runs them through
a file-mediated pipeline: scan for a trigger phrase, save each hit with its
surrounding conversation, render readable transcripts, ask an LLM to extract
the place or event being discussed, and collect the results in a spreadsheet.
It also exports whole conversations as Markdown, Word, PDF or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.chatnote/config.yaml)")
	pf.StringVar(&g.envFile, "env-file", "", "dotenv file (default .env)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&g.logJSON, "log-json", false, "log as JSON lines")
	pf.BoolVarP(&g.jsonOutput, "json", "j", false, "output as JSON")

	root.AddCommand(
		newExportCmd(g),
		newScanCmd(g),
		newRenderCmd(g),
		newCombineCmd(g),
		newExtractCmd(g),
		newAggregateCmd(g),
		newPingCmd(g),
		newIndexCmd(g),
		newSearchCmd(g),
		newMCPCmd(g),
		newConfigCmd(g),
		newVersionCmd(g),
	)
	return root
}

// newLogger writes to stderr so stdout stays free for results.
func newLogger(g *globalFlags, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	if g.logJSON {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// flagKeys maps a command's flag names to the settings they override.
type flagKeys map[string]config.Key

// env is everything a command needs after configuration is resolved.
type env struct {
	resolved config.ResolvedConfig
	settings config.Settings
	log      zerolog.Logger
	out      io.Writer
	json     bool
}

// setup resolves configuration once, with every changed flag in keys
// applied as a command-line override.
func setup(cmd *cobra.Command, g *globalFlags, keys flagKeys) (*env, error) {
	var overrides []config.Override
	for name, key := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		overrides = append(overrides, config.Override{Key: key, Value: f.Value.String(), Flag: "--" + name})
	}

	resolved, err := config.Resolve(config.ResolveOptions{
		ConfigPath: g.configPath,
		EnvFile:    g.envFile,
		CLI:        overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	settings, err := resolved.Settings()
	if err != nil {
		return nil, err
	}

	log := newLogger(g, cmd.ErrOrStderr())
	log.Debug().Str("config", resolved.ConfigPath).Str("provider", settings.LLM.Provider).Msg("configuration resolved")

	return &env{
		resolved: resolved,
		settings: settings,
		log:      log,
		out:      cmd.OutOrStdout(),
		json:     g.jsonOutput,
	}, nil
}
