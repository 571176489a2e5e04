// Package core holds the data model shared by every pipeline package:
// Session, PhaseResult, AgentResponse and the configuration snapshot a
// session is created from.
package core

import "time"

// PipelineState is the top-level session state tag.
type PipelineState string

const (
	StateIdle      PipelineState = "IDLE"
	StatePhase1    PipelineState = "PHASE_1"
	StatePhase2    PipelineState = "PHASE_2"
	StatePhase3    PipelineState = "PHASE_3"
	StatePhase4    PipelineState = "PHASE_4"
	StatePhase5    PipelineState = "PHASE_5"
	StateCompleted PipelineState = "COMPLETED"
	StateFailed    PipelineState = "FAILED"
)

// PhaseState returns the state tag for a 1-based phase number.
func PhaseState(phase int) PipelineState {
	switch phase {
	case 1:
		return StatePhase1
	case 2:
		return StatePhase2
	case 3:
		return StatePhase3
	case 4:
		return StatePhase4
	case 5:
		return StatePhase5
	default:
		return StateIdle
	}
}

// PhaseStatus is the per-PhaseResult status tag.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "PENDING"
	PhaseInProgress PhaseStatus = "IN_PROGRESS"
	PhaseCompleted  PhaseStatus = "COMPLETED"
	PhaseFailed     PhaseStatus = "FAILED"
	PhaseSkipped    PhaseStatus = "SKIPPED"
)

// DocumentType tags the kind of document a session produces. Only "bizplan"
// is defined by the canonical task assignment table; the type is open so a
// caller-supplied router mapping can add more.
type DocumentType string

const DocTypeBizPlan DocumentType = "bizplan"

// SessionConfig is the immutable configuration snapshot a Session is created
// from.
type SessionConfig struct {
	Topic          string       `json:"topic"`
	DocType        DocumentType `json:"doc_type"`
	Language       string       `json:"language"`
	TemplateTag    string       `json:"template_tag"`
	OutputDir      string       `json:"output_dir"`
	FromPhase      int          `json:"from_phase,omitempty"`
	MaxRetries     int          `json:"max_retries"`
	TimeoutSeconds int          `json:"timeout_seconds"`
}

// AgentResponse is a normalized provider response.
type AgentResponse struct {
	Provider     string    `json:"provider"`
	TaskName     string    `json:"task_name"`
	Content      string    `json:"content"`
	TokensUsed   int       `json:"tokens_used"`
	ResponseTime float64   `json:"response_time_seconds"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// PhaseResult is the outcome of a single phase execution.
type PhaseResult struct {
	Phase       int             `json:"phase"`
	Name        string          `json:"name"`
	Status      PhaseStatus     `json:"status"`
	Responses   []AgentResponse `json:"ai_responses"`
	Summary     string          `json:"summary,omitempty"`
	Artifacts   map[string]any  `json:"artifacts,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
}

// Session is the top-level entity owning one end-to-end pipeline run.
type Session struct {
	ID           string          `json:"id"`
	Config       SessionConfig   `json:"config"`
	Results      []PhaseResult   `json:"results"`
	CurrentPhase int             `json:"current_phase"`
	State        PipelineState   `json:"state"`
	Artifacts    map[string]any  `json:"artifacts"`
}

// NewSession constructs a fresh IDLE session from a configuration snapshot.
func NewSession(id string, cfg SessionConfig) *Session {
	return &Session{
		ID:           id,
		Config:       cfg,
		Results:      make([]PhaseResult, 0, 5),
		CurrentPhase: 0,
		State:        StateIdle,
		Artifacts:    make(map[string]any),
	}
}

// ResumeFrom returns the phase number (1-based) the orchestrator should
// start at, given an existing session: session.CurrentPhase+1, or the
// from_phase hint, whichever is larger.
func (s *Session) ResumeFrom() int {
	next := s.CurrentPhase + 1
	if s.Config.FromPhase > next {
		return s.Config.FromPhase
	}
	return next
}
