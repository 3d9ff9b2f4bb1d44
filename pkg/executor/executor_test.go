package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagerun/stagerun/pkg/eventbus"
	"github.com/stagerun/stagerun/pkg/events"
	"github.com/stagerun/stagerun/pkg/models"
)

// fakeLauncher records invocations and fails the stages listed in failOn.
type fakeLauncher struct {
	launched []string
	environ  map[string][]string
	failOn   map[string]error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		environ: make(map[string][]string),
		failOn:  make(map[string]error),
	}
}

func (l *fakeLauncher) Launch(_ context.Context, entryPoint string, env []string) error {
	l.launched = append(l.launched, entryPoint)
	l.environ[entryPoint] = env

	if err, ok := l.failOn[entryPoint]; ok {
		return err
	}

	return nil
}

// mockEventBus collects published events for assertions.
type mockEventBus struct {
	published []eventbus.Event
}

func (m *mockEventBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	m.published = append(m.published, event)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func descriptor(id string) models.StageDescriptor {
	return models.StageDescriptor{
		ID:         id,
		CfgKeys:    []string{id + "_cfg"},
		EntryPoint: "/pipeline/stages/" + id + "/run/local.sh",
	}
}

func envValue(t *testing.T, env []string, key string) string {
	t.Helper()

	for _, pair := range env {
		if v, ok := strings.CutPrefix(pair, key+"="); ok {
			return v
		}
	}

	t.Fatalf("env key %s not found", key)

	return ""
}

func TestExecute_RunsStagesInOrder(t *testing.T) {
	launcher := newFakeLauncher()
	bus := &mockEventBus{}
	exec := NewExecutor(launcher, bus, testLogger(), nil)

	results, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		EnvType:     "staging",
		CfgDir:      "cfg_resolved",
		Descriptors: []models.StageDescriptor{descriptor("test"), descriptor("deploy")},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"/pipeline/stages/test/run/local.sh",
		"/pipeline/stages/deploy/run/local.sh",
	}, launcher.launched)

	require.Len(t, results, 2)
	assert.Equal(t, models.StageStatusCompleted, results[0].Status)
	assert.Equal(t, models.StageStatusCompleted, results[1].Status)
}

func TestExecute_FailFastSkipsRemainingStages(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.failOn["/pipeline/stages/s2/run/local.sh"] = errors.New("exit status 1")

	exec := NewExecutor(launcher, &mockEventBus{}, testLogger(), nil)

	results, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		Descriptors: []models.StageDescriptor{descriptor("s1"), descriptor("s2"), descriptor("s3")},
	})

	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "s2", stageErr.StageID)

	// s3 must never be invoked; its result stays Pending.
	assert.Equal(t, []string{
		"/pipeline/stages/s1/run/local.sh",
		"/pipeline/stages/s2/run/local.sh",
	}, launcher.launched)

	require.Len(t, results, 3)
	assert.Equal(t, models.StageStatusCompleted, results[0].Status)
	assert.Equal(t, models.StageStatusFailed, results[1].Status)
	assert.Equal(t, models.StageStatusPending, results[2].Status)
	assert.Zero(t, results[2].Duration)
}

func TestExecute_LogsStatusTransitions(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	launcher := newFakeLauncher()
	exec := NewExecutor(launcher, &mockEventBus{}, logger, nil)

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		Descriptors: []models.StageDescriptor{descriptor("s1")},
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "status="+string(models.StageStatusRunning))
	assert.Contains(t, buf.String(), "status="+string(models.StageStatusCompleted))
}

func TestExecute_InjectsStageContract(t *testing.T) {
	launcher := newFakeLauncher()
	exec := NewExecutor(launcher, &mockEventBus{}, testLogger(), nil)

	desc := models.StageDescriptor{
		ID:         "deploy",
		CfgKeys:    []string{"db", "cache"},
		EntryPoint: "/entry",
	}

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		EnvType:     "staging",
		MainTag:     "v1.2.3",
		CfgDir:      "/work/cfg_resolved",
		Descriptors: []models.StageDescriptor{desc},
	})
	require.NoError(t, err)

	env := launcher.environ["/entry"]
	assert.Equal(t, "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", envValue(t, env, EnvRunID))
	assert.JSONEq(t, `["db","cache"]`, envValue(t, env, EnvCfgKeys))
	assert.Equal(t, "/work/cfg_resolved", envValue(t, env, EnvCfgBaseDir))
	assert.Equal(t, "staging", envValue(t, env, EnvEnvType))
	assert.Equal(t, "v1.2.3", envValue(t, env, EnvMainTag))
}

func TestExecute_OmitsMainTagWhenUnset(t *testing.T) {
	launcher := newFakeLauncher()
	exec := NewExecutor(launcher, &mockEventBus{}, testLogger(), nil)

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		EnvType:     "dev",
		Descriptors: []models.StageDescriptor{descriptor("s1")},
	})
	require.NoError(t, err)

	for _, pair := range launcher.environ["/pipeline/stages/s1/run/local.sh"] {
		assert.False(t, strings.HasPrefix(pair, EnvMainTag+"="), "main_tag must not be injected: %s", pair)
	}
}

func TestExecute_EmptyCfgKeysSerializeAsEmptyList(t *testing.T) {
	launcher := newFakeLauncher()
	exec := NewExecutor(launcher, &mockEventBus{}, testLogger(), nil)

	desc := models.StageDescriptor{ID: "noop", EntryPoint: "/entry"}

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		Descriptors: []models.StageDescriptor{desc},
	})
	require.NoError(t, err)

	assert.Equal(t, "[]", envValue(t, launcher.environ["/entry"], EnvCfgKeys))
}

func TestExecute_InjectsEnvDefaultsWithStageOverridingInventory(t *testing.T) {
	launcher := newFakeLauncher()
	exec := NewExecutor(launcher, &mockEventBus{}, testLogger(), nil)

	desc := models.StageDescriptor{
		ID:           "deploy",
		EntryPoint:   "/entry",
		InventoryEnv: map[string]string{"REGION": "us-east-1", "TIER": "standard"},
		StageEnv:     map[string]string{"TIER": "premium"},
	}

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		Descriptors: []models.StageDescriptor{desc},
	})
	require.NoError(t, err)

	env := launcher.environ["/entry"]
	assert.Contains(t, env, "REGION=us-east-1")

	// Both namespaces are appended, stage-level last, so the stage value
	// wins in the child process environment.
	inventoryIdx := -1
	stageIdx := -1

	for i, pair := range env {
		if pair == "TIER=standard" {
			inventoryIdx = i
		}

		if pair == "TIER=premium" {
			stageIdx = i
		}
	}

	require.GreaterOrEqual(t, inventoryIdx, 0)
	require.GreaterOrEqual(t, stageIdx, 0)
	assert.Greater(t, stageIdx, inventoryIdx)
}

func TestExecute_PublishesLifecycleEvents(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.failOn["/pipeline/stages/s2/run/local.sh"] = errors.New("exit status 2")

	bus := &mockEventBus{}
	exec := NewExecutor(launcher, bus, testLogger(), nil)

	_, err := exec.Execute(context.Background(), Run{
		RunID:       "run-1",
		Descriptors: []models.StageDescriptor{descriptor("s1"), descriptor("s2")},
	})
	require.Error(t, err)

	types := make([]events.EventType, 0, len(bus.published))
	for _, event := range bus.published {
		types = append(types, event.GetType())
	}

	assert.Equal(t, []events.EventType{
		events.StageStartedEvent,
		events.StageFinishedEvent,
		events.StageStartedEvent,
		events.StageFailedEvent,
	}, types)

	failed, ok := bus.published[3].(events.StageFailed)
	require.True(t, ok)
	assert.Equal(t, "s2", failed.StageID)
	assert.Contains(t, failed.Error, "exit status 2")
}
