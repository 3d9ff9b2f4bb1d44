// Package runner owns one orchestrator run end to end: document resolution,
// configuration preparation, stage execution, and teardown.
//
// The run moves Preparing -> Executing -> {Succeeded | Aborted}. The
// transient configuration directories use fixed names, so concurrent runs
// sharing a working directory must be serialized externally.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagerun/stagerun/pkg/cfgtree"
	"github.com/stagerun/stagerun/pkg/eventbus"
	"github.com/stagerun/stagerun/pkg/events"
	"github.com/stagerun/stagerun/pkg/executor"
	"github.com/stagerun/stagerun/pkg/manifest"
	"github.com/stagerun/stagerun/pkg/models"
	"github.com/stagerun/stagerun/pkg/otelhelper"
	"github.com/stagerun/stagerun/pkg/resolver"
)

// Transient directory names, relative to the working directory. Created
// fresh at run start and removed on every exit path.
const (
	MergedDirName   = "cfg_merged"
	ResolvedDirName = "cfg_resolved"
)

// Params describes one run request after CLI validation.
type Params struct {
	RunID        string
	Inventory    string
	EnvType      string
	Workflow     string
	OriginCfg    string
	MainTag      string
	SkipCfgMerge bool
	Root         string // pipeline repository root
	WorkDir      string // where transient directories are created; "." if empty
	Branch       string
	Commit       string
}

type Runner struct {
	launcher executor.Launcher
	bus      eventbus.EventPublisher
	sink     manifest.Sink // nil means log-only manifest reporting
	logger   *slog.Logger
	tracer   trace.Tracer // nil disables tracing
}

func NewRunner(launcher executor.Launcher, bus eventbus.EventPublisher, sink manifest.Sink, logger *slog.Logger, tracer trace.Tracer) *Runner {
	return &Runner{
		launcher: launcher,
		bus:      bus,
		sink:     sink,
		logger:   logger,
		tracer:   tracer,
	}
}

// Run executes one orchestrator run. Resolution happens before any
// filesystem mutation, so a resolution failure leaves no trace on disk. Once
// configuration preparation begins, removal of the transient directories is
// guaranteed on success, failure, and panic alike.
func (r *Runner) Run(ctx context.Context, p Params) error {
	logger := r.logger.With("runId", p.RunID, "status", models.RunStatusPreparing)

	var span trace.Span
	if r.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "run",
			attribute.String(otelhelper.RunIDKey, p.RunID),
			attribute.String(otelhelper.InventoryKey, p.Inventory),
			attribute.String(otelhelper.EnvTypeKey, p.EnvType),
			attribute.String(otelhelper.WorkflowKey, p.Workflow),
		)
		defer span.End()
	}

	res := resolver.New(p.Root, logger)

	inventoryPath, err := res.LocateInventory(p.Inventory)
	if err != nil {
		return r.fail(span, err)
	}

	workflowPath, workflowSource, err := res.LocateWorkflow(p.EnvType, p.Inventory, p.Workflow)
	if err != nil {
		return r.fail(span, err)
	}

	logger.Info("Using workflow", "path", workflowPath, "source", workflowSource)

	activeIDs, descriptors, err := res.Resolve(inventoryPath, workflowPath)
	if err != nil {
		return r.fail(span, err)
	}

	m := &models.RunManifest{
		RunID:        p.RunID,
		Branch:       p.Branch,
		Commit:       p.Commit,
		Inventory:    p.Inventory,
		EnvType:      p.EnvType,
		Workflow:     p.Workflow,
		MainTag:      p.MainTag,
		ActiveStages: activeIDs,
		OriginCfg:    p.OriginCfg,
		CreatedAt:    time.Now().UTC(),
	}

	manifest.Report(logger, m)

	if r.sink != nil {
		if err := r.sink.Save(ctx, m); err != nil {
			logger.Warn("Failed to persist run manifest", "error", err)
		}
	}

	r.publish(ctx, p.RunID, events.RunStarted{
		BaseEvent:    events.NewBaseEvent(events.RunStartedEvent, p.RunID),
		Inventory:    p.Inventory,
		EnvType:      p.EnvType,
		Workflow:     p.Workflow,
		ActiveStages: activeIDs,
	})

	start := time.Now()

	workDir := p.WorkDir
	if workDir == "" {
		workDir = "."
	}

	mergedDir := filepath.Join(workDir, MergedDirName)
	resolvedDir := filepath.Join(workDir, ResolvedDirName)

	// Registered before any directory is created so teardown also covers a
	// panic raised inside a stage invocation.
	defer r.cleanup(logger, mergedDir, resolvedDir)

	cfgSource := p.OriginCfg

	if p.SkipCfgMerge {
		logger.Info("Configuration merge disabled, resolving origin tree directly")
	} else {
		sources := cfgtree.LayeredSources(p.OriginCfg, p.EnvType, p.Inventory)

		plan, err := cfgtree.PlanMerge(sources)
		if err != nil {
			return r.abort(ctx, span, p.RunID, "", start, err)
		}

		for rel, contributors := range plan.Overlapping() {
			logger.Info("Configuration path has multiple contributors", "path", rel, "sources", contributors)
		}

		if err := plan.Materialize(mergedDir); err != nil {
			return r.abort(ctx, span, p.RunID, "", start, err)
		}

		cfgSource = mergedDir
	}

	if err := cfgtree.ResolveSymlinks(cfgSource, resolvedDir); err != nil {
		return r.abort(ctx, span, p.RunID, "", start, err)
	}

	logger = logger.With("status", models.RunStatusExecuting)
	logger.Info("Configuration resolved, starting stages", "stages", activeIDs)

	exec := executor.NewExecutor(r.launcher, r.bus, logger, r.tracer)

	results, err := exec.Execute(ctx, executor.Run{
		RunID:       p.RunID,
		EnvType:     p.EnvType,
		MainTag:     p.MainTag,
		CfgDir:      resolvedDir,
		Descriptors: descriptors,
	})
	if err != nil {
		failedStage := ""

		var stageErr *executor.StageError
		if errors.As(err, &stageErr) {
			failedStage = stageErr.StageID
		}

		return r.abort(ctx, span, p.RunID, failedStage, start, err)
	}

	r.publish(ctx, p.RunID, events.RunFinished{
		BaseEvent:      events.NewBaseEvent(events.RunFinishedEvent, p.RunID),
		StagesExecuted: len(results),
		Duration:       time.Since(start),
	})

	logger.With("status", models.RunStatusSucceeded).
		Info("All stages completed", "stagesExecuted", len(results), "duration", time.Since(start))

	return nil
}

// fail handles errors raised before configuration preparation: no transient
// directory exists yet and no lifecycle event has been published.
func (r *Runner) fail(span trace.Span, err error) error {
	if span != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

// abort handles failures after the run has started: the run transitions to
// Aborted and a RunFailed event is published. Transient directory teardown
// is left to the deferred cleanup.
func (r *Runner) abort(ctx context.Context, span trace.Span, runID, failedStage string, start time.Time, err error) error {
	if span != nil {
		otelhelper.SetError(span, err)
	}

	r.publish(ctx, runID, events.RunFailed{
		BaseEvent:   events.NewBaseEvent(events.RunFailedEvent, runID),
		FailedStage: failedStage,
		Error:       err.Error(),
		Duration:    time.Since(start),
	})

	r.logger.With("runId", runID, "status", models.RunStatusAborted).
		Error("Run aborted", "error", err, "failedStage", failedStage)

	return fmt.Errorf("run %s aborted: %w", runID, err)
}

func (r *Runner) cleanup(logger *slog.Logger, dirs ...string) {
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			logger.Error("Failed to remove transient configuration directory", "dir", dir, "error", err)

			continue
		}

		logger.Debug("Removed transient configuration directory", "dir", dir)
	}
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(ctx, key, event); err != nil {
		r.logger.Warn("Failed to publish lifecycle event", "eventType", event.GetType(), "error", err)
	}
}
