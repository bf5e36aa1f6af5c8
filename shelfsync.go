// Package shelfsync is the conflict resolution engine for divergent
// reading records. It detects conflicts between replicas of the same book,
// selects and executes resolution strategies, orchestrates batch runs, and
// manages the review workflow for conflicts automation will not settle.
package shelfsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/internal/cache"
	"github.com/shelfsync/shelfsync/internal/config"
	"github.com/shelfsync/shelfsync/pkg/audit"
	"github.com/shelfsync/shelfsync/pkg/batch"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/resolve"
	"github.com/shelfsync/shelfsync/pkg/storage"
	"github.com/shelfsync/shelfsync/pkg/strategy"
	"github.com/shelfsync/shelfsync/pkg/workflow"
)

// Engine is the conflict resolution engine.
type Engine interface {
	// DetectConflicts classifies the divergences in each record pair.
	DetectConflicts(ctx context.Context, pairs []conflict.Pair) ([]conflict.Conflict, error)

	// Recommendations ranks the applicable strategies for a conflict.
	Recommendations(c *conflict.Conflict) []strategy.Recommendation

	// PersonalizedRecommendations ranks strategies with the user's
	// learned preference consulted ahead of the generic ranking.
	PersonalizedRecommendations(c *conflict.Conflict, userID string) []strategy.Recommendation

	// Resolve executes one strategy against one conflict. An empty
	// strategy ID uses the configured default, or the best ranked one.
	Resolve(ctx context.Context, c *conflict.Conflict, strategyID strategy.ID) (*resolve.Result, error)

	// ResolveBatch runs a batch to completion.
	ResolveBatch(ctx context.Context, req batch.Request) (*batch.Result, error)

	// StartBatch runs a batch on its own goroutine, returning a handle
	// whose Cancel takes effect at the next item boundary.
	StartBatch(ctx context.Context, req batch.Request) *batch.Job

	// Undo reverses a resolution, restoring the pre-resolution state.
	Undo(ctx context.Context, resolutionID, actor string) (*resolve.Result, error)

	// Redo re-applies an undone resolution without recomputation.
	Redo(ctx context.Context, resolutionID, actor string) (*resolve.Result, error)

	// RecordFeedback stores a user's verdict on a resolution.
	RecordFeedback(fb workflow.Feedback) error

	// Workflows exposes the review workflow manager.
	Workflows() *workflow.Manager

	// Events exposes the engine's event broker.
	Events() *events.Broker

	// Audit exposes the append-only audit log.
	Audit() *audit.Log

	// Start wires the inbound event subscriptions and begins the
	// escalation sweep. Stop shuts both down.
	Start(ctx context.Context) error
	Stop() error

	// Health reports the engine's operational state.
	Health() Health
}

// engine is the internal implementation of the Engine interface.
type engine struct {
	cfg      *config.Config
	logger   *zerolog.Logger
	bus      *events.Broker
	detector *conflict.Detector
	registry *strategy.Registry
	executor *resolve.Executor
	batches  *batch.Orchestrator
	reviews  *workflow.Manager
	feedback *workflow.FeedbackStore
	auditLog *audit.Log
	store    storage.Store
	recCache *cache.Cache

	startedAt time.Time
	stopCh    chan struct{}
}

// New creates an Engine with the given options.
func New(opts ...Option) (Engine, error) {
	cfg := &engineConfig{
		config: config.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.NewInitializationError("engine", "applying options", err)
		}
	}
	if err := cfg.config.Validate(); err != nil {
		return nil, errors.NewInitializationError("config", "invalid configuration", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Default()
	}
	store := cfg.store
	if store == nil {
		store = storage.NewMemoryStore()
	}

	bus := events.NewBroker(logger)
	auditLog := audit.NewLog()
	feedback := workflow.NewFeedbackStore()

	thresholds := conflict.Thresholds{
		ProgressThreshold:        cfg.config.DetectionThresholds.ProgressPercent,
		TitleSimilarityThreshold: cfg.config.DetectionThresholds.TitleSimilarity,
		TimestampThreshold:       cfg.config.DetectionThresholds.Timestamp,
		TagDifferenceThreshold:   cfg.config.DetectionThresholds.TagDifference,
	}
	detector := conflict.NewDetector(thresholds, bus, logger)
	for _, rule := range cfg.rules {
		if err := detector.RegisterRule(rule); err != nil {
			return nil, errors.NewInitializationError("detector", "registering rule", err)
		}
	}

	registry := strategy.NewRegistry(
		strategy.WithTitleSimilarityThreshold(cfg.config.DetectionThresholds.TitleSimilarity),
	)
	for _, s := range cfg.strategies {
		if err := registry.Register(s); err != nil {
			return nil, errors.NewInitializationError("registry",
				fmt.Sprintf("registering strategy %s", s.ID()), err)
		}
	}

	reviewers := workflow.NewReviewerPool(cfg.reviewers)
	executor := resolve.NewExecutor(registry, bus, store, auditLog, logger,
		resolve.WithAssigner(func(*conflict.Conflict) string { return reviewers.Next() }))

	var batchOpts []batch.Option
	if cfg.config.ResolutionStrategies.MaxBatchSize > 0 {
		batchOpts = append(batchOpts, batch.WithSubBatchSize(cfg.config.ResolutionStrategies.MaxBatchSize))
	}
	if cfg.config.Performance.MemoryLimitBytes > 0 {
		batchOpts = append(batchOpts, batch.WithMemoryLimit(cfg.config.Performance.MemoryLimitBytes))
	}
	batches := batch.NewOrchestrator(executor, bus, logger, batchOpts...)

	reviewOpts := []workflow.ManagerOption{workflow.WithReviewerPool(reviewers)}
	if len(cfg.escalationRules) > 0 {
		reviewOpts = append(reviewOpts, workflow.WithEscalationRules(cfg.escalationRules))
	}
	reviews := workflow.NewManager(registry, feedback, bus, auditLog, logger, reviewOpts...)

	e := &engine{
		cfg:      cfg.config,
		logger:   logger,
		bus:      bus,
		detector: detector,
		registry: registry,
		executor: executor,
		batches:  batches,
		reviews:  reviews,
		feedback: feedback,
		auditLog: auditLog,
		store:    store,
		recCache: cache.New(cfg.config.Performance.CacheTTL, cache.DefaultCleanupInterval,
			cfg.config.Performance.CacheMaxItems),
		stopCh: make(chan struct{}),
	}
	return e, nil
}

// DetectConflicts classifies the divergences in each record pair.
func (e *engine) DetectConflicts(ctx context.Context, pairs []conflict.Pair) ([]conflict.Conflict, error) {
	return e.detector.Detect(ctx, pairs)
}

// Recommendations ranks the applicable strategies for a conflict. Rankings
// are cached per conflict fingerprint: two conflicts share a cache entry
// only when every field confidence could read is identical.
func (e *engine) Recommendations(c *conflict.Conflict) []strategy.Recommendation {
	if c == nil {
		return nil
	}
	key, ok := recommendationKey(c)
	if !ok {
		return e.registry.Recommendations(c)
	}
	if cached, ok := e.recCache.Get(key); ok {
		if recs, ok := cached.([]strategy.Recommendation); ok {
			return recs
		}
	}
	recs := e.registry.Recommendations(c)
	e.recCache.Set(key, recs)
	return recs
}

// PersonalizedRecommendations consults the user's learned preference
// ahead of the generic ranking. Not cached; preferences move with every
// piece of feedback.
func (e *engine) PersonalizedRecommendations(c *conflict.Conflict, userID string) []strategy.Recommendation {
	return e.reviews.PersonalizedRecommendations(c, userID)
}

// Resolve executes one strategy against one conflict. When automatic
// resolution is disabled by configuration, every conflict routes to
// manual review regardless of the requested strategy. A resolution that
// requires review opens a workflow for it.
func (e *engine) Resolve(ctx context.Context, c *conflict.Conflict, strategyID strategy.ID) (*resolve.Result, error) {
	if !e.cfg.ResolutionStrategies.EnableAutoResolution {
		strategyID = strategy.ManualReview
	}

	var (
		result *resolve.Result
		err    error
	)
	switch {
	case strategyID != "":
		result, err = e.executor.ExecuteAuto(ctx, c, strategyID)
	case e.cfg.ResolutionStrategies.DefaultStrategy != "":
		result, err = e.executor.ExecuteAuto(ctx, c, strategy.ID(e.cfg.ResolutionStrategies.DefaultStrategy))
	default:
		result, err = e.executor.ExecuteBest(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	if result.RequiresReview {
		if _, werr := e.reviews.Open(c, result.ResolutionID, result.ResolvedData, result.AssignedUser); werr != nil {
			e.logger.Warn().Err(werr).Str("book_id", c.BookID).Msg("Failed to open review workflow")
		}
	}
	return result, nil
}

// ResolveBatch runs a batch to completion, bounded by the configured
// processing time.
func (e *engine) ResolveBatch(ctx context.Context, req batch.Request) (*batch.Result, error) {
	if e.cfg.Performance.MaxProcessingTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Performance.MaxProcessingTime)
		defer cancel()
	}
	req = e.applyBatchDefaults(req)
	return e.batches.Process(ctx, req)
}

// StartBatch runs a batch on its own goroutine.
func (e *engine) StartBatch(ctx context.Context, req batch.Request) *batch.Job {
	return e.batches.Start(ctx, e.applyBatchDefaults(req))
}

// applyBatchDefaults fills in the configured strategy gating.
func (e *engine) applyBatchDefaults(req batch.Request) batch.Request {
	if !e.cfg.ResolutionStrategies.EnableAutoResolution {
		req.StrategyID = strategy.ManualReview
	} else if req.StrategyID == "" && e.cfg.ResolutionStrategies.DefaultStrategy != "" {
		req.StrategyID = strategy.ID(e.cfg.ResolutionStrategies.DefaultStrategy)
	}
	return req
}

// Undo reverses a resolution.
func (e *engine) Undo(ctx context.Context, resolutionID, actor string) (*resolve.Result, error) {
	return e.executor.Undo(ctx, resolutionID, actor)
}

// Redo re-applies an undone resolution.
func (e *engine) Redo(ctx context.Context, resolutionID, actor string) (*resolve.Result, error) {
	return e.executor.Redo(ctx, resolutionID, actor)
}

// RecordFeedback stores a user's verdict on a resolution.
func (e *engine) RecordFeedback(fb workflow.Feedback) error {
	return e.reviews.RecordFeedback(fb)
}

// Workflows exposes the review workflow manager.
func (e *engine) Workflows() *workflow.Manager { return e.reviews }

// Events exposes the engine's event broker.
func (e *engine) Events() *events.Broker { return e.bus }

// Audit exposes the append-only audit log.
func (e *engine) Audit() *audit.Log { return e.auditLog }

// recommendationKey scopes cached rankings to what they depend on. A
// strategy's confidence may read any field of the conflict or its replicas
// (timestamps, platforms, titles), so the key is the serialized conflict;
// an unserializable conflict bypasses the cache.
func recommendationKey(c *conflict.Conflict) (string, bool) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
