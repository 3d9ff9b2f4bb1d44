// Package events defines event types for run and stage lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic for run lifecycle events.
const Topic = "stagerun.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent  EventType = "run.started"
	RunFinishedEvent EventType = "run.finished"
	RunFailedEvent   EventType = "run.failed"

	// Stage lifecycle events.
	StageStartedEvent  EventType = "stage.started"
	StageFinishedEvent EventType = "stage.finished"
	StageFailedEvent   EventType = "stage.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	Inventory    string   `json:"inventory"`
	EnvType      string   `json:"env_type"`
	Workflow     string   `json:"workflow"`
	ActiveStages []string `json:"active_stages"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	StagesExecuted int           `json:"stages_executed"`
	Duration       time.Duration `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	FailedStage string        `json:"failed_stage,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

type StageStarted struct {
	BaseEvent

	StageID  string `json:"stage_id"`
	Position int    `json:"position"` // zero-based position in workflow order
}

func (s StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageFinished struct {
	BaseEvent

	StageID  string        `json:"stage_id"`
	Duration time.Duration `json:"duration"`
}

func (s StageFinished) GetType() EventType {
	return StageFinishedEvent
}

type StageFailed struct {
	BaseEvent

	StageID  string        `json:"stage_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (s StageFailed) GetType() EventType {
	return StageFailedEvent
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Metadata:  make(map[string]any),
	}
}
