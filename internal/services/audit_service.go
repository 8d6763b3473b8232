package services

import (
	"context"
	"log/slog"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) (*models.AuditLogEntry, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
}

// SecurityEventRepository defines the interface for security event persistence
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error)
}

// AuditService handles audit and security logging with a dual-write
// pattern (slog + database). Persistence failures are logged and swallowed:
// losing an audit entry is less harmful than blocking a legitimate
// authentication, so nothing here ever fails the triggering operation.
type AuditService struct {
	auditRepo    AuditLogRepository
	securityRepo SecurityEventRepository
	logger       *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo AuditLogRepository, securityRepo SecurityEventRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		auditRepo:    auditRepo,
		securityRepo: securityRepo,
		logger:       logger,
	}
}

// RecordAudit appends one audit log entry.
func (s *AuditService) RecordAudit(ctx context.Context, requestID *uuid.UUID, action string, actorID *uuid.UUID, actorType models.ActorType, details string) {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("action", action),
		slog.Any("request_id", requestID),
		slog.Any("actor_id", actorID),
		slog.String("actor_type", string(actorType)),
		slog.String("details", details),
	)

	entry := &models.AuditLogEntry{
		RequestID: requestID,
		Action:    action,
		ActorID:   actorID,
		ActorType: actorType,
		Details:   details,
	}

	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log entry",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// RecordSecurityEvent appends one security event.
func (s *AuditService) RecordSecurityEvent(ctx context.Context, eventType string, userID *uuid.UUID, ip, userAgent, details string) {
	s.logger.WarnContext(ctx, "security event",
		slog.String("event_type", eventType),
		slog.Any("user_id", userID),
		slog.String("ip_address", ip),
		slog.String("details", details),
	)

	event := &models.SecurityEvent{
		EventType: eventType,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Details:   details,
	}

	if _, err := s.securityRepo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
	}
}

// GetRequestTrail returns the audit trail for one request.
func (s *AuditService) GetRequestTrail(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.auditRepo.ListByRequest(ctx, requestID, limit, offset)
}

// GetActorTrail returns entries written by one actor.
func (s *AuditService) GetActorTrail(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.auditRepo.ListByActor(ctx, actorID, limit, offset)
}

// GetSecurityTrail returns security events recorded against one user.
func (s *AuditService) GetSecurityTrail(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.securityRepo.ListByUser(ctx, userID, limit, offset)
}
