package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagerun/stagerun/internal/gitinfo"
	"github.com/stagerun/stagerun/pkg/cmd"
	"github.com/stagerun/stagerun/pkg/executor"
	"github.com/stagerun/stagerun/pkg/log"
	"github.com/stagerun/stagerun/pkg/manifest"
	manifestfile "github.com/stagerun/stagerun/pkg/manifest/file"
	"github.com/stagerun/stagerun/pkg/otelhelper"
	"github.com/stagerun/stagerun/pkg/runner"
)

func main() {
	command := &cli.Command{
		Name:                  "stagerun",
		EnableShellCompletion: true,
		Usage:                 "Resolve configuration and execute workflow stages for one run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "inventory",
				Usage:    "Target inventory name",
				Required: true,
				Sources:  cli.EnvVars("STAGERUN_INVENTORY"),
			},
			&cli.StringFlag{
				Name:     "env-type",
				Usage:    "Environment type (e.g. dev, staging, prod)",
				Required: true,
				Sources:  cli.EnvVars("STAGERUN_ENV_TYPE"),
			},
			&cli.StringFlag{
				Name:     "workflow",
				Usage:    "Workflow name to execute",
				Required: true,
				Sources:  cli.EnvVars("STAGERUN_WORKFLOW"),
			},
			&cli.StringFlag{
				Name:     "origin-cfg",
				Usage:    "Origin configuration directory",
				Required: true,
				Sources:  cli.EnvVars("STAGERUN_ORIGIN_CFG"),
			},
			&cli.StringFlag{
				Name:     "ephemeral",
				Usage:    "Whether the target environment is ephemeral (true|false)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "run-id",
				Usage:    "Run identifier (UUID), supplied by the caller",
				Required: true,
				Sources:  cli.EnvVars("RUN_ID"),
			},
			&cli.IntFlag{
				Name:  "run-id-version",
				Usage: "Require a specific UUID version for --run-id (0 accepts any)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "main-tag",
				Usage: "Release/build tag exposed to stages",
			},
			&cli.BoolFlag{
				Name:  "skip-cfg-merge",
				Usage: "Skip the layered configuration merge and resolve the origin tree directly",
			},
			&cli.StringFlag{
				Name:  "repo-root",
				Usage: "Pipeline repository root (defaults to the enclosing git checkout)",
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider for run lifecycle events (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "manifest-dir",
				Usage:   "Directory to persist run manifests (log-only if unset)",
				Sources: cli.EnvVars("STAGERUN_MANIFEST_DIR"),
			},
			&cli.BoolFlag{
				Name:  "tracing",
				Usage: "Export OpenTelemetry traces for the run and its stages",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("stagerun").Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	// Input validation happens before any side effect: a malformed flag or
	// identifier must never leave partial state behind.
	ephemeral, err := parseBool(command.String("ephemeral"))
	if err != nil {
		return err
	}

	envType := command.String("env-type")
	if err := validateEnvType(envType, ephemeral); err != nil {
		return err
	}

	runID := command.String("run-id")
	if err := validateRunID(runID, int(command.Int("run-id-version"))); err != nil {
		return err
	}

	logger := log.WithRun("stagerun", runID)
	logger.InfoContext(ctx, "Initializing run orchestrator",
		"inventory", command.String("inventory"),
		"envType", envType,
		"workflow", command.String("workflow"),
		"ephemeral", ephemeral,
	)

	root := command.String("repo-root")
	if root == "" {
		root, err = gitinfo.Root(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover repository root (use --repo-root): %w", err)
		}
	}

	// Branch and commit are manifest metadata only; a bare directory without
	// git history simply leaves them empty.
	branch, _ := gitinfo.Branch(ctx)
	commit, _ := gitinfo.Commit(ctx)

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var sink manifest.Sink
	if dir := command.String("manifest-dir"); dir != "" {
		sink = manifestfile.NewSink(dir)
	}

	var tracer trace.Tracer
	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "stagerun")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	orchestrator := runner.NewRunner(
		&executor.ExecLauncher{Dir: root},
		eventBus,
		sink,
		logger,
		tracer,
	)

	if err := orchestrator.Run(ctx, runner.Params{
		RunID:        runID,
		Inventory:    command.String("inventory"),
		EnvType:      envType,
		Workflow:     command.String("workflow"),
		OriginCfg:    command.String("origin-cfg"),
		MainTag:      command.String("main-tag"),
		SkipCfgMerge: command.Bool("skip-cfg-merge"),
		Root:         root,
		Branch:       branch,
		Commit:       commit,
	}); err != nil {
		return err
	}

	// Assignment form so a calling shell can capture the identifier.
	fmt.Fprintf(os.Stdout, "export run_id=%s\n", runID)

	return nil
}
