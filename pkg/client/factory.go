package client

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/analyzer"
	"github.com/helmcode/labellens/pkg/config"
)

// Provider represents how requests reach the analysis service
type Provider string

const (
	ProviderHTTP   Provider = config.ProviderHTTP
	ProviderReplay Provider = config.ProviderReplay
)

// Factory creates Service instances based on provider
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates a new service factory
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{logger: logger}
}

// CreateService creates an analyzer.Service from the service section of the config.
func (f *Factory) CreateService(cfg config.ServiceConfig) (analyzer.Service, error) {
	switch Provider(strings.ToLower(cfg.Provider)) {
	case ProviderHTTP, "":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("analysis endpoint is required")
		}
		timeout, err := cfg.TimeoutDuration()
		if err != nil {
			return nil, err
		}
		return NewHTTPService(cfg.Endpoint, timeout, f.logger), nil

	case ProviderReplay:
		if cfg.ReplayFile == "" {
			return nil, fmt.Errorf("replay file is required")
		}
		return NewReplayService(cfg.ReplayFile), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: http, replay)", cfg.Provider)
	}
}

// GetAvailableProviders returns a list of available providers
func (f *Factory) GetAvailableProviders() []Provider {
	return []Provider{ProviderHTTP, ProviderReplay}
}
