package service

import (
	"context"
	"errors"
	"time"

	availabilityerrors "tutorhub/internal/availability/errors"
	"tutorhub/internal/availability/repository"
	"tutorhub/internal/identity"
	"tutorhub/pkg/config"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/model"
	"tutorhub/pkg/slotlock"
	"tutorhub/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AvailabilityService owns provider availability windows. Claim and Release
// are called by the booking ledger inside its transactions.
type AvailabilityService interface {
	// FindOpenWindow returns the open window covering [start, end), or nil
	// when there is none.
	FindOpenWindow(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilityWindow, error)
	Claim(ctx context.Context, windowID, bookingID string) (*model.AvailabilityWindow, error)
	Release(ctx context.Context, windowID, bookingID string) error

	CreateWindow(ctx context.Context, actor model.Actor, input *model.CreateWindowInput) (*model.AvailabilityWindow, error)
	ListOpenWindows(ctx context.Context, providerID string, from, to time.Time, limit int, offset int64) ([]*model.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, actor model.Actor, id string) error
}

type availabilityService struct {
	repo      repository.WindowRepository
	directory identity.Directory
	locker    slotlock.Locker
	validate  *validator.Validate
	cfg       *config.Config
	now       func() time.Time
}

func NewAvailabilityService(
	repo repository.WindowRepository,
	directory identity.Directory,
	locker slotlock.Locker,
	validate *validator.Validate,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		directory: directory,
		locker:    locker,
		validate:  validate,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *availabilityService) FindOpenWindow(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilityWindow, error) {
	window, err := s.repo.FindOpenCovering(ctx, providerID, start.UTC(), end.UTC())
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to look up availability", err)
	}
	return window, nil
}

func (s *availabilityService) Claim(ctx context.Context, windowID, bookingID string) (*model.AvailabilityWindow, error) {
	err := s.repo.Claim(ctx, windowID, bookingID)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotOpen) {
			window, findErr := s.repo.FindByID(ctx, windowID)
			if findErr != nil {
				return nil, apperrors.WindowNotOpen("")
			}
			return nil, apperrors.WindowNotOpen(window.ProviderID)
		}
		return nil, apperrors.Internal("Failed to claim availability window", err)
	}

	window, err := s.repo.FindByID(ctx, windowID)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload claimed window", err)
	}
	return window, nil
}

func (s *availabilityService) Release(ctx context.Context, windowID, bookingID string) error {
	if windowID == "" {
		return nil
	}
	if err := s.repo.Release(ctx, windowID, bookingID); err != nil {
		return apperrors.Internal("Failed to release availability window", err)
	}
	return nil
}

func (s *availabilityService) CreateWindow(ctx context.Context, actor model.Actor, input *model.CreateWindowInput) (*model.AvailabilityWindow, error) {
	if err := validation.Struct(s.validate, input); err != nil {
		s.cfg.Log.Warn("Availability window validation failed", "provider_id", input.ProviderID, "error", err)
		return nil, validation.ToAppError(err)
	}
	if actor.ID != input.ProviderID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only the provider or an admin can publish availability")
	}

	start, end := input.Start.UTC(), input.End.UTC()
	if start.Before(s.now().UTC()) {
		return nil, validation.Field("start", "start must be in the future").AppError()
	}

	provider, err := s.directory.GetUser(ctx, input.ProviderID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithID("Provider", input.ProviderID)
		}
		return nil, apperrors.Internal("Failed to resolve provider", err)
	}
	if provider.Role != model.RoleProvider {
		return nil, apperrors.InvalidInput("User is not a provider")
	}

	key := slotlock.CalendarKey(input.ProviderID)
	holder := uuid.NewString()
	acquired, err := s.locker.Acquire(ctx, key, holder, s.cfg.SlotLockTTL)
	if err != nil {
		s.cfg.Log.Error("Failed to acquire calendar lock", "lock_key", key, "error", err)
		return nil, apperrors.Unavailable("Slot lock").WithCause(err)
	}
	if !acquired {
		s.cfg.Log.Warn("Calendar is locked by another request", "lock_key", key)
		return nil, apperrors.SlotBusy(input.ProviderID, key)
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key, holder); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release calendar lock", "lock_key", key, "error", releaseErr)
		}
	}()

	overlapping, err := s.repo.CountOverlapping(ctx, input.ProviderID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to check overlapping windows", err)
	}
	if overlapping > 0 {
		s.cfg.Log.Warn("Availability window overlaps an existing window",
			"provider_id", input.ProviderID,
			"start", start,
			"end", end,
		)
		return nil, apperrors.Conflict("Window overlaps an existing window").WithDetails(map[string]any{
			"provider_id": input.ProviderID,
		})
	}

	window := &model.AvailabilityWindow{
		ID:         uuid.NewString(),
		ProviderID: input.ProviderID,
		Start:      start,
		End:        end,
		Status:     model.WindowOpen,
	}
	if err := s.repo.Create(ctx, window); err != nil {
		s.cfg.Log.Error("Failed to create availability window", "provider_id", input.ProviderID, "error", err)
		return nil, apperrors.Internal("Failed to create availability window", err)
	}

	s.cfg.Log.Info("Availability window created",
		"id", window.ID,
		"provider_id", window.ProviderID,
		"start", window.Start,
		"end", window.End,
	)
	return window, nil
}

func (s *availabilityService) ListOpenWindows(ctx context.Context, providerID string, from, to time.Time, limit int, offset int64) ([]*model.AvailabilityWindow, error) {
	if providerID == "" {
		return nil, apperrors.InvalidInput("provider_id is required")
	}
	if from.IsZero() {
		from = s.now()
	}
	if !to.IsZero() && !to.After(from) {
		return nil, apperrors.InvalidInput("to must be after from")
	}

	windows, err := s.repo.FindOpen(ctx, providerID, from.UTC(), to.UTC(),
		config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset))
	if err != nil {
		s.cfg.Log.Error("Failed to list availability windows", "provider_id", providerID, "error", err)
		return nil, apperrors.Internal("Failed to list availability windows", err)
	}
	return windows, nil
}

func (s *availabilityService) DeleteWindow(ctx context.Context, actor model.Actor, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Window ID cannot be empty")
	}

	window, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("AvailabilityWindow", id)
		}
		return apperrors.Internal("Failed to retrieve availability window", err)
	}
	if actor.ID != window.ProviderID && !actor.IsAdmin() {
		return apperrors.Forbidden("Only the provider or an admin can remove availability")
	}

	if err := s.repo.DeleteOpen(ctx, id); err != nil {
		switch {
		case errors.Is(err, availabilityerrors.ErrNotFound):
			return apperrors.NotFoundWithID("AvailabilityWindow", id)
		case errors.Is(err, availabilityerrors.ErrNotOpen):
			return apperrors.Conflict("Claimed windows cannot be removed")
		}
		return apperrors.Internal("Failed to delete availability window", err)
	}

	s.cfg.Log.Info("Availability window deleted", "id", id, "provider_id", window.ProviderID)
	return nil
}
