package service

import (
	"context"
	"fmt"
	"time"

	"account-service/internal/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const serviceName = "account-service"

type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

type AuditStore interface {
	Insert(ctx context.Context, event domain.AuditEvent) error
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.AuditEvent, error)
}

// RecordIdentifier resolves the stable identity of an audited record.
type RecordIdentifier interface {
	IdentityOf(record interface{}) string
}

// AuditService turns change notifications and lifecycle events into audit
// events, stores them durably and optionally publishes them to Kafka. It is
// the notification sink wired into the change tracker: Notify is invoked
// synchronously on the save path, so any failure here aborts the surrounding
// save.
type AuditService struct {
	identifier RecordIdentifier
	store      AuditStore
	publisher  AuditPublisher
}

func NewAuditService(identifier RecordIdentifier, store AuditStore, publisher AuditPublisher) *AuditService {
	return &AuditService{identifier: identifier, store: store, publisher: publisher}
}

// Notify records a single detected field change. Called at most once per
// (record, field) per save.
func (s *AuditService) Notify(ctx context.Context, record interface{}, field string, oldValue, newValue interface{}) error {
	entityID := s.identifier.IdentityOf(record)

	event := domain.AuditEvent{
		EventID:    uuid.NewString(),
		Service:    serviceName,
		EventType:  domain.EventAccountFieldChanged,
		EntityID:   entityID,
		Actor:      entityID,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]interface{}{
			"field":     field,
			"old_value": oldValue,
			"new_value": newValue,
		},
	}

	log.WithFields(log.Fields{
		"entity_id": entityID,
		"field":     field,
	}).Info("Recording field change audit event")

	return s.record(ctx, event)
}

func (s *AuditService) RecordAccountCreated(ctx context.Context, account *domain.Account) error {
	if s == nil || account == nil {
		return nil
	}

	event := domain.AuditEvent{
		EventID:    uuid.NewString(),
		Service:    serviceName,
		EventType:  domain.EventAccountCreated,
		EntityID:   account.ID,
		Actor:      account.ID,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]interface{}{
			"email":   account.Email,
			"name":    account.Name,
			"status":  account.Status,
			"balance": account.Balance,
		},
	}

	return s.record(ctx, event)
}

func (s *AuditService) RecordAccountClosed(ctx context.Context, accountID string) error {
	if s == nil {
		return nil
	}

	event := domain.AuditEvent{
		EventID:    uuid.NewString(),
		Service:    serviceName,
		EventType:  domain.EventAccountClosed,
		EntityID:   accountID,
		Actor:      accountID,
		OccurredAt: time.Now().UTC(),
		Payload:    map[string]interface{}{},
	}

	return s.record(ctx, event)
}

// History returns the durable audit trail for one account, newest first.
func (s *AuditService) History(ctx context.Context, accountID string, limit, offset int) ([]domain.AuditEvent, error) {
	events, err := s.store.ListByEntity(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return events, nil
}

func (s *AuditService) record(ctx context.Context, event domain.AuditEvent) error {
	if err := s.store.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}

	if s.publisher == nil {
		return nil
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithField("event_id", event.EventID).Error("Failed to publish audit event")
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	return nil
}
