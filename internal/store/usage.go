package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/engine"
	"github.com/aoba-lab/daiko/internal/shift"
)

// RecordUsage appends one row to the audit trail of completed actions.
func (s *Store) RecordUsage(ctx context.Context, slackID string, way engine.UseWay, action shift.Action) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_log (id, used_at, slack_id, surface, action)
		VALUES ($1, now(), $2, $3, $4)`,
		uuid.New(), slackID, string(way), action.String(),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}
