package store

import (
	"context"

	"farmbox-service/internal/models"
)

// GetUnprocessedOutboxEvents fetches pending outbox events, oldest first
func (s *Store) GetUnprocessedOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM outbox_events
		WHERE processed = false
		ORDER BY created_at
		LIMIT $1`, limit)
	return events, err
}

// MarkOutboxEventProcessed marks an outbox event as applied
func (s *Store) MarkOutboxEventProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET processed = true, processed_at = NOW()
		WHERE id = $1`, id)
	return err
}
