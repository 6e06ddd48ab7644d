package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
)

// ApplyResult reports what Apply changed.
type ApplyResult struct {
	ProfileID string   `json:"profileId"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
	Failed    []string `json:"failed,omitempty"`
}

// ProfileService manages hardening profiles over the hardening catalog.
type ProfileService struct {
	modules *ModuleService
	store   domain.ProfileStore
	system  []domain.HardeningProfile
	newID   func() string
	logger  *zap.Logger
}

// NewProfileService creates a service; modules must manage the hardening catalog.
func NewProfileService(modules *ModuleService, store domain.ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		modules: modules,
		store:   store,
		system:  catalog.SystemProfiles(modules.Feature()),
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// List returns the system profiles followed by the user profiles.
func (s *ProfileService) List() ([]domain.HardeningProfile, error) {
	user, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	result := make([]domain.HardeningProfile, 0, len(s.system)+len(user))
	result = append(result, s.systemCopies()...)
	return append(result, user...), nil
}

// Get returns one profile, system or user.
func (s *ProfileService) Get(id string) (*domain.HardeningProfile, error) {
	for _, p := range s.systemCopies() {
		if p.ID == id {
			return &p, nil
		}
	}
	return s.store.Get(id)
}

// Active returns the id of the last applied or saved profile, "" if none.
func (s *ProfileService) Active() (string, error) {
	return s.store.Active()
}

// Equal compares two settings maps over the full hardening module set.
// A missing key counts as false.
func (s *ProfileService) Equal(a, b map[string]bool) bool {
	for _, id := range s.modules.Feature().IDs() {
		if a[id] != b[id] {
			return false
		}
	}
	return true
}

// Capture maps each module with a known status to "is hardened".
func (s *ProfileService) Capture() map[string]bool {
	settings := make(map[string]bool)
	for _, st := range s.modules.List() {
		if st.Status != nil {
			settings[st.Module.ID] = !st.Status.Enabled
		}
	}
	return settings
}

// Save stores the current module states as a new user profile and marks it
// active. Settings equal to an existing profile return *DuplicateProfileError.
func (s *ProfileService) Save(name string) (*domain.HardeningProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidProfile)
	}

	settings := s.Capture()
	existing, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if s.Equal(p.Settings, settings) {
			return nil, &domain.DuplicateProfileError{DuplicateOf: p.Name}
		}
	}

	profile := domain.HardeningProfile{ID: s.newID(), Name: name, Settings: settings}
	if err := s.store.Save(profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	if err := s.store.SetActive(profile.ID); err != nil {
		return nil, fmt.Errorf("failed to mark profile active: %w", err)
	}

	s.logger.Info("profile saved",
		zap.String("id", profile.ID),
		zap.String("name", profile.Name),
		zap.Int("modules", len(settings)))
	return &profile, nil
}

// Apply drives every hardening module to the profile's target, one toggle at
// a time. A module is hardened when settings[id] is true. Modules already on
// target are skipped; a module with unknown status is always toggled.
func (s *ProfileService) Apply(ctx context.Context, id string) (*ApplyResult, error) {
	profile, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(profile.ID); err != nil {
		return nil, fmt.Errorf("failed to mark profile active: %w", err)
	}

	result := &ApplyResult{ProfileID: profile.ID}
	var errs error
	for _, st := range s.modules.List() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		targetRisk := !profile.Settings[st.Module.ID]
		if st.Status != nil && st.Status.Enabled == targetRisk {
			result.Unchanged = append(result.Unchanged, st.Module.ID)
			continue
		}
		if _, err := s.modules.Toggle(ctx, st.Module.ID, targetRisk); err != nil {
			result.Failed = append(result.Failed, st.Module.ID)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", st.Module.ID, err))
			continue
		}
		result.Changed = append(result.Changed, st.Module.ID)
	}

	s.logger.Info("profile applied",
		zap.String("id", profile.ID),
		zap.Int("changed", len(result.Changed)),
		zap.Int("unchanged", len(result.Unchanged)),
		zap.Int("failed", len(result.Failed)))
	return result, errs
}

// Import stores a profile document as a new user profile.
// Only the presence of name and settings is checked.
func (s *ProfileService) Import(doc domain.ProfileDocument) (*domain.HardeningProfile, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidProfile)
	}
	if doc.Settings == nil {
		return nil, fmt.Errorf("%w: settings are required", domain.ErrInvalidProfile)
	}

	profile := domain.HardeningProfile{ID: s.newID(), Name: doc.Name, Settings: doc.Settings}
	if err := s.store.Save(profile); err != nil {
		return nil, fmt.Errorf("failed to import profile: %w", err)
	}
	s.logger.Info("profile imported", zap.String("id", profile.ID), zap.String("name", profile.Name))
	return &profile, nil
}

// ParseDocument decodes an import document.
func ParseDocument(data []byte) (domain.ProfileDocument, error) {
	var doc domain.ProfileDocument
	if err := jsonCodec.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
	}
	return doc, nil
}

// Export returns the document form of a profile.
func (s *ProfileService) Export(id string) (domain.ProfileDocument, error) {
	p, err := s.Get(id)
	if err != nil {
		return domain.ProfileDocument{}, err
	}
	return domain.ProfileDocument{Name: p.Name, Settings: p.Settings}, nil
}

// Delete removes a user profile. System profiles cannot be deleted.
func (s *ProfileService) Delete(id string) error {
	if catalog.IsSystemProfile(id) {
		return domain.ErrSystemProfile
	}
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func (s *ProfileService) systemCopies() []domain.HardeningProfile {
	out := make([]domain.HardeningProfile, len(s.system))
	for i, p := range s.system {
		settings := make(map[string]bool, len(p.Settings))
		for k, v := range p.Settings {
			settings[k] = v
		}
		p.Settings = settings
		out[i] = p
	}
	return out
}
