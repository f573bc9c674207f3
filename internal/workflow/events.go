// Package workflow runs one research workflow end to end and streams its
// progress as an ordered sequence of typed events.
package workflow

import (
	"time"

	"research-agent/internal/registry"
)

// EventType discriminates the event union on the wire.
type EventType string

const (
	EventWorkflowStart EventType = "workflow_start"
	EventProgress      EventType = "progress"
	EventReasoning     EventType = "reasoning"
	EventContent       EventType = "content"
	EventMetadata      EventType = "metadata"
	EventComplete      EventType = "complete"
	EventPersisted     EventType = "persisted"
	EventError         EventType = "error"
)

// Stage tags a progress event with the pipeline step it reports on.
type Stage string

const (
	StagePlanning     Stage = "planning"
	StageSearching    Stage = "searching"
	StageScraping     Stage = "scraping"
	StageSynthesizing Stage = "synthesizing"
	StageFinalizing   Stage = "finalizing"
)

// Event is one member of the workflow event union. Each concrete event
// carries its own "type" field so the union stays tagged after marshalling.
type Event interface {
	Kind() EventType
}

// WorkflowStartEvent opens every stream. WorkflowID and Nonce are UUIDv7,
// minted once and stable for the whole sequence.
type WorkflowStartEvent struct {
	Type       EventType `json:"type"`
	WorkflowID string    `json:"workflowId"`
	Nonce      string    `json:"nonce"`
}

func (e WorkflowStartEvent) Kind() EventType { return EventWorkflowStart }

// ProgressEvent reports one planner, provider or scrape step.
type ProgressEvent struct {
	Type          EventType `json:"type"`
	Stage         Stage     `json:"stage"`
	Message       string    `json:"message"`
	ToolReasoning string    `json:"toolReasoning,omitempty"`
	ToolQuery     string    `json:"toolQuery,omitempty"`
}

func (e ProgressEvent) Kind() EventType { return EventProgress }

// ReasoningEvent carries one model thinking chunk.
type ReasoningEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

func (e ReasoningEvent) Kind() EventType { return EventReasoning }

// ContentEvent carries one answer text delta. Deltas concatenated in
// arrival order reconstruct the full answer.
type ContentEvent struct {
	Type  EventType `json:"type"`
	Delta string    `json:"delta"`
}

func (e ContentEvent) Kind() EventType { return EventContent }

// MetadataEvent carries the finalized source list and answer statistics.
// Exactly one is emitted per workflow, after all progress, reasoning and
// content events.
type MetadataEvent struct {
	Type               EventType                    `json:"type"`
	WorkflowID         string                       `json:"workflowId"`
	WebResearchSources []registry.WebResearchSource `json:"webResearchSources"`
	HasLimitations     bool                         `json:"hasLimitations"`
	Confidence         float64                      `json:"confidence"`
	AnswerLength       int                          `json:"answerLength"`
	Nonce              string                       `json:"nonce"`
}

func (e MetadataEvent) Kind() EventType { return EventMetadata }

// WorkflowSummary is the frozen view of a finished workflow carried by the
// complete event.
type WorkflowSummary struct {
	WorkflowID     string    `json:"workflowId"`
	Status         string    `json:"status"`
	SearchMethod   string    `json:"searchMethod"`
	HasRealResults bool      `json:"hasRealResults"`
	SourceCount    int       `json:"sourceCount"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// CompleteEvent signals the workflow finished; its summary references the
// same workflowId as the metadata event.
type CompleteEvent struct {
	Type     EventType       `json:"type"`
	Workflow WorkflowSummary `json:"workflow"`
}

func (e CompleteEvent) Kind() EventType { return EventComplete }

// PersistedPayload is built exactly once, signed at most once and emitted
// at most once.
type PersistedPayload struct {
	AssistantMessageID string                       `json:"assistantMessageId"`
	WorkflowID         string                       `json:"workflowId"`
	Answer             string                       `json:"answer"`
	WebResearchSources []registry.WebResearchSource `json:"webResearchSources"`
}

// PersistedEvent closes a successful stream with the signed payload the
// downstream store can verify.
type PersistedEvent struct {
	Type      EventType        `json:"type"`
	Payload   PersistedPayload `json:"payload"`
	Nonce     string           `json:"nonce"`
	Signature string           `json:"signature"`
}

func (e PersistedEvent) Kind() EventType { return EventPersisted }

// ErrorEvent terminates a failed stream. Content already sent is not
// retracted; the client treats this as answer truncation.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e ErrorEvent) Kind() EventType { return EventError }
