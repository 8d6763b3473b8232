package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// RateLimitWindow is the rolling window attempts are counted over.
const RateLimitWindow = time.Hour

// AuthAttemptRepository defines the interface for attempt accounting
type AuthAttemptRepository interface {
	RecordIfUnderLimit(ctx context.Context, userID uuid.UUID, ip string, since time.Time, limit int) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitService bounds how often a user/IP pair may create
// authentication requests.
type RateLimitService struct {
	attempts AuthAttemptRepository
	audit    *AuditService
	policy   PolicyProvider
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(attempts AuthAttemptRepository, audit *AuditService, policy PolicyProvider, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		attempts: attempts,
		audit:    audit,
		policy:   policy,
		logger:   logger,
	}
}

// CheckAndRecord admits the attempt and records it, or fails with
// ErrRateLimited. Both the user key and the IP key must be under the
// per-hour limit; the repository serializes the check-then-record so two
// devices logging in near-simultaneously cannot both slip under the bound.
func (s *RateLimitService) CheckAndRecord(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	limit := s.policy.Policy().AttemptsPerHour
	since := time.Now().Add(-RateLimitWindow)

	allowed, err := s.attempts.RecordIfUnderLimit(ctx, userID, ip, since, limit)
	if err != nil {
		s.logger.Error("failed to check rate limit", slog.Any("user_id", userID), slog.Any("error", err))
		// Fail open for availability: a DB error should not lock out
		// legitimate users. An exceeded limit still fails closed.
		return nil
	}

	if !allowed {
		s.audit.RecordSecurityEvent(ctx, models.SecurityEventRateLimited, &userID, ip, userAgent,
			fmt.Sprintf("more than %d authentication requests in the last hour", limit))
		return models.ErrRateLimited
	}

	return nil
}

// Cleanup removes attempts that aged out of the rolling window.
func (s *RateLimitService) Cleanup(ctx context.Context) (int64, error) {
	// Keep records for 2x the window so recent history stays inspectable
	return s.attempts.DeleteOlderThan(ctx, time.Now().Add(-2*RateLimitWindow))
}
