package shelfsync

import (
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/internal/config"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/storage"
	"github.com/shelfsync/shelfsync/pkg/strategy"
	"github.com/shelfsync/shelfsync/pkg/workflow"
)

// Option is a function that configures an Engine instance.
type Option func(*engineConfig) error

// engineConfig accumulates construction options.
type engineConfig struct {
	config          *config.Config
	logger          *zerolog.Logger
	store           storage.Store
	strategies      []strategy.Strategy
	rules           []conflict.Rule
	escalationRules []workflow.EscalationRule
	reviewers       []string
}

// WithConfig replaces the default engine configuration.
func WithConfig(cfg *config.Config) Option {
	return func(c *engineConfig) error {
		if cfg == nil {
			return errors.NewValidationError("config", nil, "config is nil")
		}
		c.config = cfg
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file over the defaults.
func WithConfigFile(path string) Option {
	return func(c *engineConfig) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *engineConfig) error {
		if logger == nil {
			return errors.NewValidationError("logger", nil, "logger is nil")
		}
		c.logger = logger
		return nil
	}
}

// WithStore sets the persistence collaborator. Without one the engine
// retains resolutions in memory only.
func WithStore(store storage.Store) Option {
	return func(c *engineConfig) error {
		if store == nil {
			return errors.NewValidationError("store", nil, "store is nil")
		}
		c.store = store
		return nil
	}
}

// WithStrategies registers custom resolution strategies alongside the
// built-ins.
func WithStrategies(strategies ...strategy.Strategy) Option {
	return func(c *engineConfig) error {
		for _, s := range strategies {
			if s == nil {
				return errors.NewValidationError("strategy", nil, "strategy is nil")
			}
		}
		c.strategies = append(c.strategies, strategies...)
		return nil
	}
}

// WithDetectionRules registers custom detection rules alongside the
// built-ins.
func WithDetectionRules(rules ...conflict.Rule) Option {
	return func(c *engineConfig) error {
		for _, r := range rules {
			if r == nil {
				return errors.NewValidationError("rule", nil, "rule is nil")
			}
		}
		c.rules = append(c.rules, rules...)
		return nil
	}
}

// WithEscalationRules replaces the default escalation rule set.
func WithEscalationRules(rules ...workflow.EscalationRule) Option {
	return func(c *engineConfig) error {
		c.escalationRules = append(c.escalationRules, rules...)
		return nil
	}
}

// WithReviewers names the reviewers manual reviews are assigned to, in
// round-robin order. Without reviewers, reviews stay unassigned.
func WithReviewers(users ...string) Option {
	return func(c *engineConfig) error {
		for _, u := range users {
			if u == "" {
				return errors.NewValidationError("reviewer", nil, "reviewer name is empty")
			}
		}
		c.reviewers = append(c.reviewers, users...)
		return nil
	}
}
