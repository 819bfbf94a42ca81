// Package api provides the gRPC decision service: rule evaluation against
// approved policy rules plus the reviewer operations on the candidate registry.
package api

import (
	"fmt"

	"github.com/solatis/priorauth/internal/core/config"
	"github.com/solatis/priorauth/internal/registry"
	"github.com/solatis/priorauth/internal/rules"
	"go.uber.org/zap"
)

// DecisionService implements DecisionServer.
// Thin orchestration layer delegating to the rules engine and the registry.
type DecisionService struct {
	engine   *rules.Engine
	registry *registry.Registry
	cfg      *config.ServerConfig
	logger   *zap.Logger
}

// NewDecisionService creates service instance with dependencies.
func NewDecisionService(engine *rules.Engine, reg *registry.Registry, cfg *config.ServerConfig, logger *zap.Logger) (*DecisionService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DecisionService{
		engine:   engine,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
	}, nil
}
