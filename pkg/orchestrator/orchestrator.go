// Package orchestrator implements PipelineOrchestrator, the top-level state
// machine that creates sessions, runs phases in order, persists state after
// every phase, triggers summarization, and finalizes the terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/corerrors"
	"github.com/aigenflow/pipeline/pkg/logging"
	"github.com/aigenflow/pipeline/pkg/phase"
	"github.com/aigenflow/pipeline/pkg/summarizer"
	"github.com/aigenflow/pipeline/pkg/tokens"
)

// summarizerBackingProvider is the provider whose context window the
// summarization gate measures against, matching the backing provider the
// summarizer invokes for compression.
const summarizerBackingProvider = "claude"

// Config is the RunPipeline input: the session configuration snapshot plus
// summarization controls.
type Config struct {
	Session              core.SessionConfig
	SummarizationEnabled bool
	SummarizeThreshold   float64
}

// Orchestrator drives the five-phase pipeline to completion or failure.
type Orchestrator struct {
	executors  map[int]*phase.Executor
	summarizer *summarizer.Summarizer
	tracker    *tokens.Tracker
	logger     logging.Logger
}

// New returns an Orchestrator over the given per-phase executors.
func New(executors map[int]*phase.Executor, summ *summarizer.Summarizer, tracker *tokens.Tracker, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Orchestrator{executors: executors, summarizer: summ, tracker: tracker, logger: logger}
}

// RunPipeline creates a fresh session and runs every phase from 1 to 5,
// persisting state synchronously after each one. It returns the session
// regardless of outcome; callers inspect session.State.
func (o *Orchestrator) RunPipeline(ctx context.Context, cfg Config) (*core.Session, error) {
	sess := core.NewSession(uuid.NewString(), cfg.Session)
	return o.runFrom(ctx, sess, cfg, 1)
}

// Resume continues a previously persisted session from
// session.ResumeFrom(), re-running no already-completed phases.
func (o *Orchestrator) Resume(ctx context.Context, sess *core.Session, cfg Config) (*core.Session, error) {
	start := sess.ResumeFrom()
	if start > 5 {
		return sess, corerrors.New("orchestrator.Resume", "pipeline", corerrors.ErrResumeNotPossible).WithID(sess.ID)
	}
	return o.runFrom(ctx, sess, cfg, start)
}

func (o *Orchestrator) runFrom(ctx context.Context, sess *core.Session, cfg Config, startPhase int) (*core.Session, error) {
	sessionDir := filepath.Join(sess.Config.OutputDir, sess.ID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return sess, corerrors.New("orchestrator.RunPipeline", "pipeline", corerrors.ErrPersistenceFailed).WithID(sess.ID)
	}

	for k := startPhase; k <= 5; k++ {
		select {
		case <-ctx.Done():
			sess.State = core.StateFailed
			_ = o.persist(sessionDir, sess, 0)
			return sess, ctx.Err()
		default:
		}

		if cfg.SummarizationEnabled && k > 1 {
			o.runSummarizationGate(ctx, sess, k, cfg.SummarizeThreshold)
		}

		executor, ok := o.executors[k]
		if !ok {
			sess.State = core.StateFailed
			return sess, corerrors.New("orchestrator.RunPipeline", "pipeline",
				fmt.Errorf("%w: no executor registered for phase %d", corerrors.ErrInvalidStateTransition, k)).WithID(sess.ID)
		}

		result := executor.Execute(ctx, sess)
		sess.Results = append(sess.Results, result)
		sess.CurrentPhase = k
		sess.State = core.PhaseState(k)

		if err := o.persist(sessionDir, sess, k); err != nil {
			return sess, corerrors.New("orchestrator.RunPipeline", "pipeline", corerrors.ErrPersistenceFailed).WithID(sess.ID)
		}

		if result.Status == core.PhaseFailed {
			break
		}
	}

	if len(sess.Results) == 0 || sess.Results[len(sess.Results)-1].Status == core.PhaseFailed || sess.CurrentPhase < 5 {
		sess.State = core.StateFailed
	} else {
		sess.State = core.StateCompleted
	}

	if o.tracker != nil {
		sess.Artifacts["token_summary"] = o.tracker.Summary("")
	}

	if err := o.persistState(sessionDir, sess); err != nil {
		return sess, corerrors.New("orchestrator.RunPipeline", "pipeline", corerrors.ErrPersistenceFailed).WithID(sess.ID)
	}
	return sess, nil
}

func (o *Orchestrator) runSummarizationGate(ctx context.Context, sess *core.Session, k int, threshold float64) {
	if threshold <= 0 {
		threshold = 0.8
	}
	if !o.summarizer.ShouldSummarize(sess.Results, k, summarizerBackingProvider, threshold) {
		return
	}

	result := o.summarizer.Summarize(ctx, sess.Results, k)
	if !result.Success {
		o.logger.Warn("summarization failed, continuing with original context", map[string]interface{}{
			"phase": k, "error": result.Error,
		})
		return
	}
	sess.Artifacts[fmt.Sprintf("context_summary_phase_%d", k)] = result
}

// persist writes phase<k>_results.json (when k > 0) and pipeline_state.json.
func (o *Orchestrator) persist(sessionDir string, sess *core.Session, k int) error {
	if k > 0 {
		if err := writeJSON(filepath.Join(sessionDir, fmt.Sprintf("phase%d_results.json", k)), sess.Results[len(sess.Results)-1]); err != nil {
			return err
		}
	}
	return o.persistState(sessionDir, sess)
}

func (o *Orchestrator) persistState(sessionDir string, sess *core.Session) error {
	return writeJSON(filepath.Join(sessionDir, "pipeline_state.json"), sess)
}
