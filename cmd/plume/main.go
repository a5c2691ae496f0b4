// Package main is the entry point for the Plume admin runtime CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/app"
	"github.com/plumecms/plume/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	envFile    string
	logLevel   string
	plugins    multiFlag
	watch      bool
}

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func run() int {
	opts, args := parseFlags()

	// A .env beside the process can supply ${VAR} values for the config
	// file; a missing one is fine.
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: loading %s: %v\n", opts.envFile, err)
			return 1
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := newLogger(cfg, opts.logLevel)

	if len(args) == 0 {
		args = []string{"validate"}
	}
	switch args[0] {
	case "validate":
		fmt.Printf("%s: %d collections, %d globals\n",
			opts.configPath, len(cfg.Collections), len(cfg.Globals))
		return 0
	case "inspect":
		return inspect(cfg, log, opts, args[1:])
	case "watch":
		return watch(cfg, log, opts)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		flag.Usage()
		return 2
	}
}

// inspect opens a document headlessly and prints its fetched state and
// the assembled form data.
func inspect(cfg *config.Config, log zerolog.Logger, opts options, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: inspect needs a slug (and optionally an id)")
		return 2
	}
	slug := args[0]
	id := ""
	if len(args) > 1 {
		id = args[1]
	}

	session := app.NewSession(cfg, log)
	defer session.Close()
	if err := session.LoadPlugins(opts.plugins...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	req := app.OpenRequest{Collection: slug, ID: id}
	if _, ok := cfg.Global(slug); ok {
		req = app.OpenRequest{Global: slug}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout.Std())
	defer cancel()
	ds, err := session.Open(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer ds.Close()

	if vs := ds.Info.Versions(); vs != nil {
		fmt.Printf("versions: %d\n", vs.TotalDocs)
	}
	if un := ds.Info.UnpublishedVersions(); un != nil && len(un.Docs) > 0 {
		fmt.Printf("unpublished drafts: %d (latest %s)\n", len(un.Docs), un.Docs[0].UpdatedAt)
	}

	var pretty json.RawMessage = ds.Form.DataJSON()
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return 0
}

// watch keeps the config file under live reload until interrupted.
func watch(cfg *config.Config, log zerolog.Logger, opts options) int {
	w, err := config.Watch(opts.configPath, 200*time.Millisecond, func(next *config.Config) {
		log.Info().
			Int("collections", len(next.Collections)).
			Int("globals", len(next.Globals)).
			Msg("configuration updated")
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer w.Close()

	log.Info().Str("path", opts.configPath).Msg("watching configuration")
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	return 0
}

func newLogger(cfg *config.Config, override string) zerolog.Logger {
	levelName := cfg.Log.Level
	if override != "" {
		levelName = override
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Log.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func parseFlags() (options, []string) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "plume.toml", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "plume.toml", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.envFile, "env", "", "Path to .env file")
	flag.StringVar(&opts.logLevel, "log-level", "", "Override configured log level")
	flag.Var(&opts.plugins, "plugin", "Rich text plugin script (repeatable)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Plume - headless CMS admin runtime\n\n")
		fmt.Fprintf(os.Stderr, "Usage: plume [options] <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  validate              Validate the configuration and exit\n")
		fmt.Fprintf(os.Stderr, "  inspect <slug> [id]   Open a document and print its form data\n")
		fmt.Fprintf(os.Stderr, "  watch                 Watch the configuration for changes\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  plume -c plume.toml validate\n")
		fmt.Fprintf(os.Stderr, "  plume -c plume.toml inspect posts 42\n")
		fmt.Fprintf(os.Stderr, "  plume -c plume.yaml -plugin callout.lua inspect pages\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("Plume %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts, flag.Args()
}
