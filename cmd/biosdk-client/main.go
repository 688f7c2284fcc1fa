// Command biosdk-client calls remote biometric SDK services from the shell.
//
// Usage:
//
//	biosdk-client -p format.url.default=http://localhost:8088 init
//	biosdk-client -p format.url.default=http://localhost:8088 check-quality sample.json -m FINGER
//	biosdk-client stub --addr :8088
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/compresr/biosdk-client/internal/config"
	"github.com/compresr/biosdk-client/internal/monitoring"
)

// CLI defines the command-line interface.
type CLI struct {
	Init            InitCmd            `cmd:"" help:"Initialize every configured SDK service and print the aggregated SDK info."`
	CheckQuality    CheckQualityCmd    `cmd:"" help:"Score the quality of a sample."`
	Match           MatchCmd           `cmd:"" help:"Match a sample against a gallery."`
	ExtractTemplate ExtractTemplateCmd `cmd:"" help:"Extract templates from a sample."`
	Segment         SegmentCmd         `cmd:"" help:"Segment a sample."`
	ConvertFormat   ConvertFormatCmd   `cmd:"" help:"Convert a sample to another format."`
	Stub            StubCmd            `cmd:"" help:"Serve a stub SDK service for local testing."`
	Version         VersionCmd         `cmd:"" help:"Show version information."`

	Config    string            `short:"c" help:"Path to YAML config file." type:"path"`
	LogLevel  string            `help:"Log level (trace, debug, info, warn, error)." placeholder:"LEVEL"`
	LogFormat string            `help:"Log format (json, console). Defaults to console on a terminal."`
	Param     map[string]string `short:"p" help:"Init parameter, repeatable (e.g. format.url.default=http://host:port)." placeholder:"KEY=VALUE"`
}

// app carries what every command needs once flags are parsed.
type app struct {
	cli    *CLI
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// ~/.config/biosdk-client/.env first; godotenv never overrides, so the
	// process environment wins over both files.
	configEnv := filepath.Join(homeDir, ".config", "biosdk-client", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("biosdk-client"),
		kong.Description("Client for remote biometric SDK services"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	a, err := newApp(&cli, stdout, stderr)
	if err != nil {
		return err
	}
	return kctx.Run(a)
}

func newApp(cli *CLI, stdout, stderr io.Writer) (*app, error) {
	var cfg *config.Config
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	switch {
	case cli.LogFormat != "":
		cfg.Logging.Format = cli.LogFormat
	case isTerminal(stderr):
		cfg.Logging.Format = "console"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Output == "stderr" {
		logger = monitoring.NewWithWriter(stderr, level, cfg.Logging.Format == "console")
	} else {
		logger = monitoring.Global(cfg.Logging)
	}

	return &app{cli: cli, cfg: cfg, logger: logger, out: stdout}, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
