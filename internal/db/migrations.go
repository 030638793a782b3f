package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations/0001_initial_schema.sql
var schemaSQL string

// ApplySchema creates the queries/retrieved_contexts/query_responses/
// user_feedbacks/analytics_aggregates tables if they don't already exist.
// It is safe to call on every startup.
func (c *Client) ApplySchema(ctx context.Context) error {
	_, err := c.db.GetDB().ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	c.logger.Info("Database schema applied")
	return nil
}
