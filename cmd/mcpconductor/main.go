// Command mcpconductor is the CLI entrypoint: it loads a server config,
// runs the suite files given on the command line against it, and reports
// the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/reportportal/mcpconductor/internal/mcpmodel"
	"github.com/reportportal/mcpconductor/internal/reporter"
	"github.com/reportportal/mcpconductor/internal/runner"
	"github.com/reportportal/mcpconductor/pkg/mcpclient"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:        "mcpconductor",
		Usage:       "black-box conformance and behavior test harness for MCP servers",
		Version:     fmt.Sprintf("%s (%s) %s", version, commit, date),
		Description: "mcpconductor spawns an MCP server over stdio, drives it through suite files of request/expectation pairs, and reports pass/fail results.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Required: true,
				Sources:  cli.EnvVars("MCPCONDUCTOR_CONFIG"),
				Usage:    "path to the server config JSON file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   slog.LevelInfo.String(),
				Usage:   "logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "emit a machine-readable JSON report instead of colored text",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress per-test lines, printing only the final tally",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "print every validation error for a failing test, not just the first",
			},
			&cli.BoolFlag{
				Name:  "timing",
				Usage: "print each test's duration alongside its status",
			},
			&cli.StringFlag{
				Name:  "call-tool",
				Usage: "bypass suite loading and invoke a single tool by name, printing its raw result",
			},
			&cli.StringFlag{
				Name:  "call-tool-args",
				Usage: "JSON object of arguments for --call-tool",
				Value: "{}",
			},
		},
		Before: initLogger(),
		Action: runAction,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mcpconductor:", err)
		os.Exit(2)
	}
}

func initLogger() func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return ctx, nil
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if tool := cmd.String("call-tool"); tool != "" {
		return runSingleToolCall(ctx, configPath, tool, cmd.String("call-tool-args"))
	}

	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one suite file or directory must be given")
	}

	cfg, err := mcpmodel.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	r := runner.New(cfg)
	summary, err := r.RunAll(ctx, paths)
	if err != nil {
		return err
	}

	sink := reporterFor(cmd)
	if err := sink.Report(os.Stdout, summary); err != nil {
		return err
	}

	if !summary.Passed() {
		os.Exit(1)
	}
	return nil
}

func reporterFor(cmd *cli.Command) reporter.Sink {
	if cmd.Bool("json") {
		return reporter.JSONSink{}
	}
	return reporter.TextSink{
		Verbose:    cmd.Bool("verbose"),
		Quiet:      cmd.Bool("quiet"),
		ShowTiming: cmd.Bool("timing"),
	}
}

// runSingleToolCall implements the --call-tool escape hatch: connect,
// invoke one tool, print its raw result, disconnect. It exists for ad-hoc
// exploration of a server without writing a suite file first.
func runSingleToolCall(ctx context.Context, configPath, tool, argsJSON string) error {
	client, err := mcpclient.Connect(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect() }()

	args, err := parseToolArgs(argsJSON)
	if err != nil {
		return fmt.Errorf("parsing --call-tool-args: %w", err)
	}

	result, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return err
	}
	return printJSON(result)
}
