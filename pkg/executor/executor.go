// Package executor runs the active stages of one run in workflow order.
//
// Each stage moves Pending -> Running -> {Completed | Failed}. The first
// failure aborts the remaining sequence; partial completion is a reported
// failure, never a degraded success.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagerun/stagerun/pkg/eventbus"
	"github.com/stagerun/stagerun/pkg/events"
	"github.com/stagerun/stagerun/pkg/models"
	"github.com/stagerun/stagerun/pkg/otelhelper"
)

// Environment keys of the stage contract.
const (
	EnvRunID      = "run_id"
	EnvCfgKeys    = "cfg_keys"
	EnvCfgBaseDir = "origin_cfg_base_dir_path"
	EnvEnvType    = "env_type"
	EnvMainTag    = "main_tag"
)

// Run carries everything the executor needs for one run: the validated run
// identifier, the effective configuration tree path, and the ordered stage
// descriptors.
type Run struct {
	RunID       string
	EnvType     string
	MainTag     string
	CfgDir      string
	Descriptors []models.StageDescriptor
}

// StageResult records the terminal state of one attempted stage.
type StageResult struct {
	ID       string             `json:"id"`
	Status   models.StageStatus `json:"status"`
	Duration time.Duration      `json:"duration"`
}

type Executor struct {
	launcher Launcher
	bus      eventbus.EventPublisher
	logger   *slog.Logger
	tracer   trace.Tracer // nil disables span creation
}

func NewExecutor(launcher Launcher, bus eventbus.EventPublisher, logger *slog.Logger, tracer trace.Tracer) *Executor {
	return &Executor{
		launcher: launcher,
		bus:      bus,
		logger:   logger,
		tracer:   tracer,
	}
}

// Execute runs every descriptor in order, fail-fast. It returns one result
// per descriptor: stages the abort prevented from starting stay Pending, the
// failing stage is Failed, and the returned error wraps a StageError.
func (e *Executor) Execute(ctx context.Context, run Run) ([]StageResult, error) {
	results := make([]StageResult, len(run.Descriptors))
	for i, descriptor := range run.Descriptors {
		results[i] = StageResult{ID: descriptor.ID, Status: models.StageStatusPending}
	}

	for position, descriptor := range run.Descriptors {
		results[position].Status = models.StageStatusRunning

		logger := e.logger.With("stageId", descriptor.ID)
		logger.Info(fmt.Sprintf("===================== %s =====================", descriptor.ID),
			"status", models.StageStatusRunning)

		startedEvent := events.StageStarted{
			BaseEvent: events.NewBaseEvent(events.StageStartedEvent, run.RunID),
			StageID:   descriptor.ID,
			Position:  position,
		}
		e.publish(ctx, run.RunID, startedEvent)

		stageCtx := ctx

		var span trace.Span
		if e.tracer != nil {
			stageCtx, span = otelhelper.StartSpan(ctx, e.tracer, "stage",
				attribute.String(otelhelper.RunIDKey, run.RunID),
				attribute.String(otelhelper.StageIDKey, descriptor.ID),
			)
		}

		start := time.Now()
		err := e.launchStage(stageCtx, run, descriptor)
		duration := time.Since(start)

		results[position].Duration = duration

		if err != nil {
			if span != nil {
				otelhelper.SetError(span, err)
				span.End()
			}

			results[position].Status = models.StageStatusFailed

			stageErr := &StageError{StageID: descriptor.ID, Err: err}

			e.publish(ctx, run.RunID, events.StageFailed{
				BaseEvent: events.NewBaseEvent(events.StageFailedEvent, run.RunID),
				StageID:   descriptor.ID,
				Error:     err.Error(),
				Duration:  duration,
			})
			logger.Error("Stage failed, aborting remaining stages",
				"status", models.StageStatusFailed, "error", err, "duration", duration)

			return results, stageErr
		}

		if span != nil {
			span.End()
		}

		results[position].Status = models.StageStatusCompleted

		e.publish(ctx, run.RunID, events.StageFinished{
			BaseEvent: events.NewBaseEvent(events.StageFinishedEvent, run.RunID),
			StageID:   descriptor.ID,
			Duration:  duration,
		})
		logger.Info("Stage completed", "status", models.StageStatusCompleted, "duration", duration)
	}

	return results, nil
}

func (e *Executor) launchStage(ctx context.Context, run Run, descriptor models.StageDescriptor) error {
	env, err := buildEnviron(run, descriptor)
	if err != nil {
		return err
	}

	return e.launcher.Launch(ctx, descriptor.EntryPoint, env)
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish lifecycle event", "eventType", event.GetType(), "error", err)
	}
}

// buildEnviron constructs the stage process environment: the inherited
// process environment, then inventory-level defaults, then stage-level
// defaults, then the fixed contract keys. Later entries win on duplicates.
func buildEnviron(run Run, descriptor models.StageDescriptor) ([]string, error) {
	env := os.Environ()
	env = append(env, sortedPairs(descriptor.InventoryEnv)...)
	env = append(env, sortedPairs(descriptor.StageEnv)...)

	cfgKeys := descriptor.CfgKeys
	if cfgKeys == nil {
		cfgKeys = []string{}
	}

	serialized, err := json.Marshal(cfgKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cfg_keys for stage %s: %w", descriptor.ID, err)
	}

	env = append(env,
		EnvRunID+"="+run.RunID,
		EnvCfgKeys+"="+string(serialized),
		EnvCfgBaseDir+"="+run.CfgDir,
		EnvEnvType+"="+run.EnvType,
	)

	if run.MainTag != "" {
		env = append(env, EnvMainTag+"="+run.MainTag)
	}

	return env, nil
}

func sortedPairs(vars map[string]string) []string {
	if len(vars) == 0 {
		return nil
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+vars[k])
	}

	return pairs
}
