package ai

import (
	"context"
	"fmt"

	"github.com/hiroki-koketsu/upahead/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUsage reads counters from the ai_usage table.
type PostgresUsage struct {
	db *pgxpool.Pool
}

// NewPostgresUsage reads counters through db.
func NewPostgresUsage(db *pgxpool.Pool) *PostgresUsage {
	return &PostgresUsage{db: db}
}

// Attempts reads the ai_usage row of userID.
func (p *PostgresUsage) Attempts(ctx context.Context, userID string) (UsageRecord, bool, error) {
	var rec UsageRecord
	err := p.db.QueryRow(ctx,
		`SELECT attempts, blocked FROM ai_usage WHERE user_id = $1`, userID,
	).Scan(&rec.Attempts, &rec.Blocked)
	if repository.IsNoRows(err) {
		return UsageRecord{}, false, nil
	}
	if err != nil {
		return UsageRecord{}, false, fmt.Errorf("read usage: %w", err)
	}
	return rec, true, nil
}
