// Package dispatch runs the single sequential worker that drains the job
// queue and drives the browser launcher. Serializing launches here is what
// guarantees the first-window transition happens at most once.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/popgate/internal/browser"
	"github.com/mattjoyce/popgate/internal/events"
	"github.com/mattjoyce/popgate/internal/history"
	"github.com/mattjoyce/popgate/internal/log"
	"github.com/mattjoyce/popgate/internal/policy"
	"github.com/mattjoyce/popgate/internal/queue"
	"github.com/mattjoyce/popgate/internal/stats"
)

// Launcher is the browser-launch surface the worker drives.
type Launcher interface {
	OpenTab(url string, pol policy.LaunchPolicy) (browser.Action, error)
	OpenWindow(url string, pol policy.LaunchPolicy) (browser.Action, error)
}

// HistoryRecorder persists processed pops. May be nil when history is
// disabled.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Worker is the single sequential consumer of the job queue.
type Worker struct {
	queue    *queue.Queue
	policies *policy.Provider
	state    *PlacementState
	launcher Launcher
	counters *stats.Counters
	hub      *events.Hub
	history  HistoryRecorder
	logger   *slog.Logger
}

// NewWorker creates a Worker. hist may be nil.
func NewWorker(
	q *queue.Queue,
	provider *policy.Provider,
	state *PlacementState,
	launcher Launcher,
	counters *stats.Counters,
	hub *events.Hub,
	hist HistoryRecorder,
) *Worker {
	return &Worker{
		queue:    q,
		policies: provider,
		state:    state,
		launcher: launcher,
		counters: counters,
		hub:      hub,
		history:  hist,
		logger:   log.WithComponent("dispatch"),
	}
}

// Run is the dispatch loop. It blocks until ctx is cancelled; individual
// job failures never terminate it.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("dispatch loop started")
	defer w.logger.Info("dispatch loop stopped")

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		w.process(ctx, job)
	}
}

// process handles a single job to completion.
func (w *Worker) process(ctx context.Context, job queue.Job) {
	jobLogger := log.WithJob(job.ID)
	pol := w.policies.Current()

	var (
		action browser.Action
		err    error
	)
	switch pol.Mode {
	case policy.ModeNewWindow:
		action, err = w.launcher.OpenWindow(job.URL, pol)
	case policy.ModeFirstWindowThenTabs:
		if !w.state.FirstWindowDone() {
			action, err = w.launcher.OpenWindow(job.URL, pol)
			if err == nil {
				w.state.markDone()
			}
		} else {
			action, err = w.launcher.OpenTab(job.URL, pol)
		}
	default:
		action, err = w.launcher.OpenTab(job.URL, pol)
	}

	completedAt := time.Now().UTC()

	if err != nil {
		w.counters.RecordFailure(err.Error())
		w.hub.Publish(events.TypePopFailed, popEvent{JobID: job.ID, URL: job.URL, Action: string(action), Error: err.Error()})
		jobLogger.Error("launch failed", "url", job.URL, "action", action, "error", err)
		w.record(ctx, job, action, "failed", err.Error(), completedAt)
		return
	}

	w.counters.IncProcessed()
	w.hub.Publish(events.TypePopLaunched, popEvent{JobID: job.ID, URL: job.URL, Action: string(action)})
	jobLogger.Info("pop dispatched", "url", job.URL, "action", action)
	w.record(ctx, job, action, "launched", "", completedAt)
}

// record appends the outcome to the history log, if one is configured.
func (w *Worker) record(ctx context.Context, job queue.Job, action browser.Action, status, errDesc string, completedAt time.Time) {
	if w.history == nil {
		return
	}
	err := w.history.Record(ctx, history.Entry{
		JobID:       job.ID,
		URL:         job.URL,
		Action:      string(action),
		Status:      status,
		Error:       errDesc,
		EnqueuedAt:  job.EnqueuedAt,
		CompletedAt: completedAt,
	})
	if err != nil {
		w.logger.Warn("failed to record pop history", "job_id", job.ID, "error", err)
	}
}

// popEvent is the JSON payload published to the event hub.
type popEvent struct {
	JobID  string `json:"job_id"`
	URL    string `json:"url"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}
