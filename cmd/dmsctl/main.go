// Package main provides the entry point for dmsctl, the document management
// command line client and MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	mcpserver "github.com/txn2/dms-client/internal/server"
	"github.com/txn2/dms-client/pkg/platform"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage is returned after usage has been printed.
var errUsage = errors.New("invalid usage")

type globalOptions struct {
	configPath  string
	verbose     bool
	showVersion bool
}

// env is what a command runs against.
type env struct {
	p      *platform.Platform
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string

	// route is the guarded destination the command opens; empty commands
	// run without a session check.
	route string

	run func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":        {summary: "store a bearer token for later commands", run: runLogin},
	"logout":       {summary: "discard the stored token", run: runLogout},
	"whoami":       {summary: "show the current session and its roles", run: runWhoami},
	"search":       {summary: "search documents", route: "search", run: runSearch},
	"retention":    {summary: "show a document's retention status", route: "admin/retention", run: runRetention},
	"holds":        {summary: "list, place or release legal holds", route: "legal/holds", run: runHolds},
	"audit-export": {summary: "export the audit trail as CSV", route: "admin/audit-logs", run: runAuditExport},
	"groups":       {summary: "show the group hierarchy", route: "admin/groups", run: runGroups},
	"serve":        {summary: "serve the document tools over MCP", run: runServe},
}

func parseFlags(args []string, stderr io.Writer) (globalOptions, []string, error) {
	opts := globalOptions{}
	fs := flag.NewFlagSet("dmsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to configuration file (env DMS_CONFIG)")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return opts, nil, errUsage
	}
	return opts, fs.Args(), nil
}

func usage(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: dmsctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-13s %s\n", name, commands[name].summary)
	}
	_, _ = fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
}

func defaultConfigPath() string {
	if p := os.Getenv("DMS_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dms.yaml"
	}
	return filepath.Join(dir, "dms", "config.yaml")
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.showVersion {
		_, _ = fmt.Fprintf(stdout, "dmsctl version %s\n", mcpserver.Version)
		return nil
	}
	if len(rest) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: dmsctl [flags] <command> [args]  (dmsctl -h lists commands)")
		return errUsage
	}

	name := rest[0]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	setupLogging(stderr, opts.verbose)

	p, err := openPlatform(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if cmd.route != "" {
		if d := p.Navigator().Navigate(cmd.route); !d.Allowed() {
			return fmt.Errorf("%s: %w", name, d.Err())
		}
	}

	return cmd.run(ctx, &env{p: p, stdin: stdin, stdout: stdout, stderr: stderr}, rest[1:])
}

func openPlatform(ctx context.Context, path string) (*platform.Platform, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	p, err := platform.New(platform.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("starting platform: %w", err)
	}
	return p, nil
}
