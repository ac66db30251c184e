package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// RepoTargetProvider enables runtime hot-swap of the repository the table
// documents are read from and written to. Remote calls read the target on
// every request, so a settings change takes effect without a restart.
type RepoTargetProvider struct {
	mu     sync.RWMutex
	target model.RepoTarget
}

// NewRepoTargetProvider creates a provider holding target.
func NewRepoTargetProvider(target model.RepoTarget) *RepoTargetProvider {
	return &RepoTargetProvider{target: target}
}

// Target returns the current repo target.
func (p *RepoTargetProvider) Target() model.RepoTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

// Replace swaps the current target.
func (p *RepoTargetProvider) Replace(target model.RepoTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
}

// RepoSettingsService manages the durable owner/name/branch overrides layered
// over the configured defaults.
type RepoSettingsService struct {
	store    driven.RepoSettingsStore
	provider *RepoTargetProvider
	defaults model.RepoTarget
}

// NewRepoSettingsService creates a RepoSettingsService.
func NewRepoSettingsService(store driven.RepoSettingsStore, provider *RepoTargetProvider, defaults model.RepoTarget) *RepoSettingsService {
	return &RepoSettingsService{store: store, provider: provider, defaults: defaults}
}

// Load applies the stored overrides to the provider. Overrides that no longer
// validate are ignored in favour of the defaults.
func (s *RepoSettingsService) Load(ctx context.Context) (model.RepoTarget, error) {
	overrides, err := s.store.GetOverrides(ctx)
	if err != nil {
		return model.RepoTarget{}, fmt.Errorf("load repo overrides: %w", err)
	}

	target := overrides.Apply(s.defaults)
	if err := target.Validate(); err != nil {
		slog.Warn("stored repo overrides invalid, using defaults", "error", err)
		target = s.defaults
	}
	s.provider.Replace(target)
	return target, nil
}

// Current returns the target in effect.
func (s *RepoSettingsService) Current() model.RepoTarget {
	return s.provider.Target()
}

// Defaults returns the configured target, without overrides.
func (s *RepoSettingsService) Defaults() model.RepoTarget {
	return s.defaults
}

// Update merges the non-empty fields of patch into the stored overrides,
// validates the resulting target, persists it and makes it current.
func (s *RepoSettingsService) Update(ctx context.Context, patch model.RepoOverrides) (model.RepoTarget, error) {
	existing, err := s.store.GetOverrides(ctx)
	if err != nil {
		return model.RepoTarget{}, fmt.Errorf("load repo overrides: %w", err)
	}

	merged := patch.Apply(model.RepoTarget(existing))
	overrides := model.RepoOverrides(merged)
	target := overrides.Apply(s.defaults)
	if err := target.Validate(); err != nil {
		return model.RepoTarget{}, &model.ValidationError{Findings: []model.Finding{{Message: err.Error()}}}
	}

	if err := s.store.SetOverrides(ctx, overrides); err != nil {
		return model.RepoTarget{}, fmt.Errorf("save repo overrides: %w", err)
	}
	s.provider.Replace(target)
	slog.Info("repository target changed", "repo", target.FullName(), "branch", target.Branch)
	return target, nil
}

// Reset drops every override and returns to the configured defaults.
func (s *RepoSettingsService) Reset(ctx context.Context) (model.RepoTarget, error) {
	if err := s.store.SetOverrides(ctx, model.RepoOverrides{}); err != nil {
		return model.RepoTarget{}, fmt.Errorf("reset repo overrides: %w", err)
	}
	s.provider.Replace(s.defaults)
	return s.defaults, nil
}
