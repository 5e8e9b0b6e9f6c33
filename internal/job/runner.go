// Package job runs the collection pipeline as a single-flight background
// job: at most one run at a time, with a status machine the HTTP layer can
// poll.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curation"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/metrics"
)

// Collector produces the raw item set for one run.
type Collector interface {
	Run(ctx context.Context) []curator.Item
}

// Runner owns the pipeline job state. All state access is mutex-guarded;
// Status returns copies.
type Runner struct {
	collector Collector
	engine    *curation.Engine
	store     curator.SnapshotStore
	publisher curator.Publisher
	clock     curator.Clock
	logger    *zap.Logger

	// budget bounds one full pipeline run.
	budget time.Duration

	mu     sync.Mutex
	status curator.JobStatus
}

// New builds a Runner in the Idle state. publisher may be nil when no
// publishing target is configured.
func New(
	collector Collector,
	engine *curation.Engine,
	store curator.SnapshotStore,
	publisher curator.Publisher,
	clock curator.Clock,
	budget time.Duration,
	logger *zap.Logger,
) *Runner {
	if budget <= 0 {
		budget = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		collector: collector,
		engine:    engine,
		store:     store,
		publisher: publisher,
		clock:     clock,
		budget:    budget,
		logger:    logger.Named("job"),
		status: curator.JobStatus{
			State:     curator.StateIdle,
			Detail:    "aguardando",
			Timestamp: clock.Now(),
		},
	}
}

// Status returns a copy of the current job status.
func (r *Runner) Status() curator.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Trigger starts a pipeline run in the background. It returns false without
// starting anything when a run is already in flight.
func (r *Runner) Trigger() bool {
	r.mu.Lock()
	if r.status.State == curator.StateRunning {
		r.mu.Unlock()
		return false
	}
	r.setStatusLocked(curator.StateRunning, "iniciando coleta")
	r.mu.Unlock()

	go r.run()
	return true
}

func (r *Runner) run() {
	start := r.clock.Now()
	log := r.logger.With(zap.String("run_id", uuid.NewString()))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline panicked", zap.Any("panic", rec))
			r.setStatus(curator.StateError, fmt.Sprintf("erro interno: %v", rec))
			metrics.ObservePipelineRun("panic", time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.budget)
	defer cancel()

	r.setStatus(curator.StateRunning, "coletando conteúdo das fontes")
	raw := r.collector.Run(ctx)

	r.setStatus(curator.StateRunning, "curando e ranqueando itens")
	selected := r.engine.Curate(raw)
	stats := r.engine.Stats(selected)
	log.Info("curation summary",
		zap.Int("raw", len(raw)),
		zap.Int("selected", stats.TotalItems),
		zap.Any("by_source", stats.BySource),
		zap.Float64("avg_score", stats.AvgScore),
		zap.String("top_item", stats.TopItem),
	)

	r.setStatus(curator.StateRunning, "persistindo resultado")
	snap := curator.Snapshot{
		UpdatedAt: r.clock.Now(),
		Total:     len(selected),
		Items:     selected,
	}
	if err := r.store.Save(ctx, snap); err != nil {
		log.Error("snapshot save failed", zap.Error(err))
		r.setStatus(curator.StateError, "falha ao salvar resultado: "+err.Error())
		metrics.ObservePipelineRun("error", time.Since(start))
		return
	}
	metrics.SetCuratedItems(len(selected))

	detail := fmt.Sprintf("%d itens curados", len(selected))
	if r.publisher != nil {
		r.setStatus(curator.StateRunning, "publicando itens")
		if !r.publisher.Publish(ctx, selected) {
			// Publishing is best effort: the snapshot is already
			// durable, so the run still counts as done.
			log.Warn("publish failed", zap.Int("items", len(selected)))
			detail += " (publicação falhou)"
		}
	}

	r.setStatus(curator.StateDone, detail)
	metrics.ObservePipelineRun("success", time.Since(start))
	log.Info("pipeline finished",
		zap.Int("items", len(selected)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (r *Runner) setStatus(state curator.JobState, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatusLocked(state, detail)
}

func (r *Runner) setStatusLocked(state curator.JobState, detail string) {
	r.status = curator.JobStatus{
		State:     state,
		Detail:    detail,
		Timestamp: r.clock.Now(),
	}
	r.logger.Debug("job status",
		zap.String("state", string(state)),
		zap.String("detail", detail),
	)
}
