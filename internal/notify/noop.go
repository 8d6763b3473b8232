package notify

import (
	"context"
	"log/slog"

	"github.com/colefleming/vouch/internal/models"
)

// NoopNotifier drops notifications. Used when email delivery is disabled,
// typically in development.
type NoopNotifier struct {
	logger *slog.Logger
}

// NewNoopNotifier creates a notifier that only logs.
func NewNoopNotifier(log *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: log}
}

func (n *NoopNotifier) NotifyPendingRequest(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error {
	n.logger.Info("notifications disabled, skipping approver email",
		slog.Any("request_id", req.ID),
		slog.Int("recipients", len(recipients)),
	)
	return nil
}
