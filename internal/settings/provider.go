// Package settings resolves the effective notification settings of a
// medication from its stored overrides and the configured defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ErrInvalidOverride is returned for overrides that cannot be applied
var ErrInvalidOverride = errors.New("follow-up delay must not be negative")

// Store loads per-medication overrides
type Store interface {
	GetMedicationSettings(ctx context.Context, medicationID string) (*model.NotificationSettingsOverride, error)
	SaveMedicationSettings(ctx context.Context, medicationID string, o *model.NotificationSettingsOverride) error
}

// Defaults are applied to every field a medication does not override
type Defaults struct {
	FollowUpEnabled       bool
	FollowUpDelay         time.Duration
	CriticalAlertsEnabled bool
	TimeSensitiveEnabled  bool
}

// Provider serves effective settings, caching them per medication
type Provider struct {
	store    Store
	defaults Defaults
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewProvider creates a new Provider. A ttl of zero disables expiry.
func NewProvider(store Store, defaults Defaults, ttl time.Duration, logger *zap.Logger) *Provider {
	cleanup := time.Duration(0)
	expiry := cache.NoExpiration
	if ttl > 0 {
		expiry = ttl
		cleanup = 2 * ttl
	}

	return &Provider{
		store:    store,
		defaults: defaults,
		cache:    cache.New(expiry, cleanup),
		logger:   logger,
	}
}

// GetEffectiveSettings returns the settings that apply to medicationID
func (p *Provider) GetEffectiveSettings(ctx context.Context, medicationID string) (model.NotificationSettings, error) {
	if cached, ok := p.cache.Get(medicationID); ok {
		return cached.(model.NotificationSettings), nil
	}

	override, err := p.store.GetMedicationSettings(ctx, medicationID)
	if err != nil {
		return model.NotificationSettings{}, fmt.Errorf("failed to load notification settings: %w", err)
	}

	effective := Merge(p.defaults, override)
	p.cache.SetDefault(medicationID, effective)

	return effective, nil
}

// SaveOverride stores overrides for a medication and drops its cached
// settings
func (p *Provider) SaveOverride(ctx context.Context, medicationID string, o *model.NotificationSettingsOverride) error {
	if o.FollowUpDelayMinutes != nil && *o.FollowUpDelayMinutes < 0 {
		return ErrInvalidOverride
	}

	if err := p.store.SaveMedicationSettings(ctx, medicationID, o); err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}

	p.Invalidate(medicationID)
	p.logger.Info("notification settings updated", zap.String("medication_id", medicationID))
	return nil
}

// Invalidate drops the cached settings of a medication
func (p *Provider) Invalidate(medicationID string) {
	p.cache.Delete(medicationID)
}

// Merge applies an override on top of defaults. A zero follow-up delay
// turns follow-ups off.
func Merge(d Defaults, o *model.NotificationSettingsOverride) model.NotificationSettings {
	s := model.NotificationSettings{
		FollowUpEnabled:       d.FollowUpEnabled,
		FollowUpDelay:         d.FollowUpDelay,
		CriticalAlertsEnabled: d.CriticalAlertsEnabled,
		TimeSensitiveEnabled:  d.TimeSensitiveEnabled,
	}

	if o != nil {
		if o.FollowUpEnabled != nil {
			s.FollowUpEnabled = *o.FollowUpEnabled
		}
		if o.FollowUpDelayMinutes != nil {
			s.FollowUpDelay = time.Duration(*o.FollowUpDelayMinutes) * time.Minute
		}
		if o.CriticalAlertsEnabled != nil {
			s.CriticalAlertsEnabled = *o.CriticalAlertsEnabled
		}
		if o.TimeSensitiveEnabled != nil {
			s.TimeSensitiveEnabled = *o.TimeSensitiveEnabled
		}
	}

	if s.FollowUpDelay <= 0 {
		s.FollowUpEnabled = false
	}

	return s
}
