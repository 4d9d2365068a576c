package routestore

import (
	"context"
	"database/sql"
	"fmt"

	"relaydesk/internal/routing"
	"relaydesk/pkg/domain"
)

// Postgres persists routing documents in the relaydesk_routes table. Save
// keeps whole-document semantics: the tenant's rows are replaced in one
// transaction, mirroring the file backend's whole-file rewrite.
type Postgres struct {
	db       *sql.DB
	tenantID domain.TenantID
}

// NewPostgres returns a Postgres-backed store for one tenant.
func NewPostgres(db *sql.DB, tenantID domain.TenantID) *Postgres {
	return &Postgres{db: db, tenantID: tenantID}
}

const createRoutesTable = `
CREATE TABLE IF NOT EXISTS relaydesk_routes (
	tenant_id        TEXT        NOT NULL,
	conversation_id  TEXT        NOT NULL,
	channel_id       TEXT        NOT NULL,
	display_name     TEXT        NOT NULL DEFAULT '',
	last_activity_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, conversation_id)
)`

// Migrate creates the backing table. Call once at startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createRoutesTable); err != nil {
		return fmt.Errorf("create relaydesk_routes table: %w", err)
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context) (map[domain.ConversationID]routing.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, channel_id, display_name, last_activity_at
		 FROM relaydesk_routes WHERE tenant_id = $1`, s.tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("query routing rows: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ConversationID]routing.Entry)
	for rows.Next() {
		var entry routing.Entry
		var conversationID, channelID string
		if err := rows.Scan(&conversationID, &channelID, &entry.DisplayName, &entry.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan routing row: %w", err)
		}
		entry.ConversationID = domain.ConversationID(conversationID)
		entry.ChannelID = domain.ChannelID(channelID)
		out[entry.ConversationID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) Save(ctx context.Context, entries map[domain.ConversationID]routing.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin routing save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM relaydesk_routes WHERE tenant_id = $1`, s.tenantID.String()); err != nil {
		return fmt.Errorf("clear routing rows: %w", err)
	}

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relaydesk_routes
			 (tenant_id, conversation_id, channel_id, display_name, last_activity_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.tenantID.String(), entry.ConversationID.String(), entry.ChannelID.String(),
			entry.DisplayName, entry.LastActivityAt); err != nil {
			return fmt.Errorf("insert routing row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit routing save: %w", err)
	}
	return nil
}
