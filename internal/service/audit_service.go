package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/credential-service/internal/events"
)

// EventForwarder ships events outside the process, e.g. to a message broker.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

// AuditService records credential events in the log and forwards them.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	forwarder  EventForwarder
}

// NewAuditService creates the service. forwarder may be nil.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, forwarder EventForwarder) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		forwarder:  forwarder,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventIdentityRegistered, a.handleIdentityRegistered)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
}

func (a *AuditService) handleIdentityRegistered(ctx context.Context, event events.Event) error {
	a.logger.Info("IdentityRegistered", zap.String("identity_id", event.IdentityID), zap.String("email", event.Email))
	return a.forward(ctx, event)
}

func (a *AuditService) handleLoginSucceeded(ctx context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded", zap.String("identity_id", event.IdentityID), zap.Any("payload", event.Payload))
	return a.forward(ctx, event)
}

func (a *AuditService) handleLoginFailed(ctx context.Context, event events.Event) error {
	a.logger.Warn("LoginFailed", zap.String("email", event.Email), zap.Any("payload", event.Payload))
	return a.forward(ctx, event)
}

func (a *AuditService) forward(ctx context.Context, event events.Event) error {
	if a.forwarder == nil {
		return nil
	}
	if err := a.forwarder.Publish(ctx, event); err != nil {
		a.logger.Warn("forward event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
