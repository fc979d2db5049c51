package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"account-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

type AuditLogRepository interface {
	Insert(ctx context.Context, event domain.AuditEvent) error
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.AuditEvent, error)
}

type postgresAuditLogRepository struct {
	db *sql.DB
}

func NewPostgresAuditLogRepository(db *sql.DB) *postgresAuditLogRepository {
	return &postgresAuditLogRepository{db: db}
}

func (r *postgresAuditLogRepository) Insert(ctx context.Context, event domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO account_audit_log (
			event_id, service, event_type,
			entity_id, actor, occurred_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.EventID,
		event.Service,
		event.EventType,
		event.EntityID,
		event.Actor,
		event.OccurredAt,
		payload,
	)

	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"event_id":  event.EventID,
			"entity_id": event.EntityID,
		}).Error("Failed to insert audit event")
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

func (r *postgresAuditLogRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT event_id, service, event_type,
			entity_id, actor, occurred_at, payload
		FROM account_audit_log
		WHERE entity_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, entityID, limit, offset)
	if err != nil {
		log.WithError(err).WithField("entity_id", entityID).Error("Failed to list audit events")
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var payload []byte

		err := rows.Scan(
			&event.EventID,
			&event.Service,
			&event.EventType,
			&event.EntityID,
			&event.Actor,
			&event.OccurredAt,
			&payload,
		)
		if err != nil {
			log.WithError(err).Error("Failed to scan audit event row")
			return nil, fmt.Errorf("failed to scan audit event row: %w", err)
		}

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Error iterating over audit event rows")
		return nil, fmt.Errorf("error iterating over audit event rows: %w", err)
	}

	return events, nil
}
