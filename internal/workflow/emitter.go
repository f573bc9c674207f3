package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperrors "research-agent/internal/common/errors"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
)

// State is the emitter lifecycle position. Transitions only move forward;
// a workflow is never reopened after Persisted, Errored or Closed.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateResearching
	StateSynthesizing
	StateFinalizing
	StatePersisted
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateResearching:
		return "researching"
	case StateSynthesizing:
		return "synthesizing"
	case StateFinalizing:
		return "finalizing"
	case StatePersisted:
		return "persisted"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Emitter owns the ordered event sequence for one workflow. The producer
// side (orchestrator) calls the typed emit methods; the transport drains
// Events(). The channel is bounded so a stalled client applies backpressure
// to the pipeline instead of growing an unbounded buffer.
type Emitter struct {
	workflowID string
	nonce      string

	mu           sync.Mutex
	state        State
	completeSent bool

	events chan Event
	logger logger.Logger
}

const eventBuffer = 64

func NewEmitter(log logger.Logger) *Emitter {
	workflowID := uuid.Must(uuid.NewV7()).String()
	return &Emitter{
		workflowID: workflowID,
		nonce:      uuid.Must(uuid.NewV7()).String(),
		state:      StateIdle,
		events:     make(chan Event, eventBuffer),
		logger: log.With(map[string]interface{}{
			"component":  "workflow-emitter",
			"workflowId": workflowID,
		}),
	}
}

func (e *Emitter) WorkflowID() string { return e.workflowID }
func (e *Emitter) Nonce() string      { return e.nonce }

// Events is the transport-facing side of the stream. It is closed exactly
// once, by Close.
func (e *Emitter) Events() <-chan Event { return e.events }

func (e *Emitter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start transitions Idle to Started and emits workflow_start.
func (e *Emitter) Start(ctx context.Context) error {
	if err := e.transition(StateIdle, StateStarted); err != nil {
		return err
	}
	metrics.WorkflowsStarted.Inc()
	return e.emit(ctx, WorkflowStartEvent{
		Type:       EventWorkflowStart,
		WorkflowID: e.workflowID,
		Nonce:      e.nonce,
	})
}

// Progress reports one pipeline step. Allowed any time between
// workflow_start and metadata.
func (e *Emitter) Progress(ctx context.Context, stage Stage, message, toolReasoning, toolQuery string) error {
	if err := e.advanceResearching(); err != nil {
		return err
	}
	return e.emit(ctx, ProgressEvent{
		Type:          EventProgress,
		Stage:         stage,
		Message:       message,
		ToolReasoning: toolReasoning,
		ToolQuery:     toolQuery,
	})
}

// Reasoning streams one model thinking chunk.
func (e *Emitter) Reasoning(ctx context.Context, content string) error {
	if err := e.advanceSynthesizing(); err != nil {
		return err
	}
	return e.emit(ctx, ReasoningEvent{Type: EventReasoning, Content: content})
}

// Content streams one answer delta.
func (e *Emitter) Content(ctx context.Context, delta string) error {
	if err := e.advanceSynthesizing(); err != nil {
		return err
	}
	return e.emit(ctx, ContentEvent{Type: EventContent, Delta: delta})
}

// Metadata freezes the source list and moves to Finalizing. No progress,
// reasoning or content may follow.
func (e *Emitter) Metadata(ctx context.Context, ev MetadataEvent) error {
	e.mu.Lock()
	if e.state != StateStarted && e.state != StateResearching && e.state != StateSynthesizing {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("metadata not allowed in state %s", state)
	}
	e.state = StateFinalizing
	e.mu.Unlock()

	ev.Type = EventMetadata
	ev.WorkflowID = e.workflowID
	ev.Nonce = e.nonce
	return e.emit(ctx, ev)
}

// Complete emits the workflow summary. Requires Finalizing, before persisted.
func (e *Emitter) Complete(ctx context.Context, summary WorkflowSummary) error {
	e.mu.Lock()
	if e.state != StateFinalizing || e.completeSent {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("complete not allowed in state %s", state)
	}
	e.completeSent = true
	e.mu.Unlock()

	summary.WorkflowID = e.workflowID
	return e.emit(ctx, CompleteEvent{Type: EventComplete, Workflow: summary})
}

// Persisted emits the signed payload and moves to Persisted. It requires
// that Complete already ran, which keeps the metadata < complete < persisted
// ordering total.
func (e *Emitter) Persisted(ctx context.Context, payload PersistedPayload, signature string) error {
	e.mu.Lock()
	if e.state != StateFinalizing || !e.completeSent {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("persisted not allowed in state %s", state)
	}
	e.state = StatePersisted
	e.mu.Unlock()

	return e.emit(ctx, PersistedEvent{
		Type:      EventPersisted,
		Payload:   payload,
		Nonce:     e.nonce,
		Signature: signature,
	})
}

// Fail moves to Errored and emits a single error event. Safe to call from
// any pre-terminal state; calling it after a terminal state is a no-op.
func (e *Emitter) Fail(ctx context.Context, stdErr *apperrors.StandardError) {
	e.mu.Lock()
	if e.state == StatePersisted || e.state == StateErrored || e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = StateErrored
	e.mu.Unlock()

	e.logger.WithError(stdErr).Error("workflow failed", map[string]interface{}{
		"code": string(stdErr.Code),
	})
	_ = e.emit(ctx, ErrorEvent{
		Type:    EventError,
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
	})
}

// Close ends the stream. After Close the transport's range over Events()
// returns.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return
	}
	if e.state != StatePersisted && e.state != StateErrored {
		e.logger.Info("workflow closed before completion", map[string]interface{}{
			"state": e.state.String(),
		})
	}
	e.state = StateClosed
	close(e.events)
}

func (e *Emitter) transition(from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		return fmt.Errorf("cannot transition %s -> %s", e.state, to)
	}
	e.state = to
	return nil
}

func (e *Emitter) advanceResearching() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateStarted, StateResearching:
		e.state = StateResearching
		return nil
	case StateSynthesizing:
		return nil
	default:
		return fmt.Errorf("progress not allowed in state %s", e.state)
	}
}

func (e *Emitter) advanceSynthesizing() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateStarted, StateResearching, StateSynthesizing:
		e.state = StateSynthesizing
		return nil
	default:
		return fmt.Errorf("stream chunk not allowed in state %s", e.state)
	}
}

// emit delivers one event or reports the stream as closed when the client
// context ends first. The caller decides whether that aborts the workflow.
func (e *Emitter) emit(ctx context.Context, ev Event) error {
	select {
	case e.events <- ev:
		metrics.EventsEmitted.WithLabelValues(string(ev.Kind())).Inc()
		return nil
	case <-ctx.Done():
		return apperrors.NewStreamClosedError(e.workflowID)
	}
}
