package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/kitsync/internal/domain"
)

// Postgres implements Ledger against PostgreSQL.
type Postgres struct{ db *sql.DB }

// NewPostgres creates a Postgres-backed ledger.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate creates the ledger tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kitsync_sends (
			document_id   TEXT PRIMARY KEY,
			broadcast_id  TEXT NOT NULL,
			run_id        TEXT NOT NULL,
			subject       TEXT NOT NULL DEFAULT '',
			audience      TEXT NOT NULL DEFAULT '',
			send_at       TIMESTAMPTZ NOT NULL,
			reconciled    BOOLEAN NOT NULL DEFAULT false,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reconciled_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS kitsync_stats (
			id                 BIGSERIAL PRIMARY KEY,
			document_id        TEXT NOT NULL,
			broadcast_id       TEXT NOT NULL,
			recipients         INTEGER NOT NULL,
			opens              INTEGER NOT NULL,
			clicks             INTEGER NOT NULL,
			total_clicks       INTEGER NOT NULL,
			open_rate          DOUBLE PRECISION NOT NULL,
			click_rate         DOUBLE PRECISION NOT NULL,
			click_to_open_rate DOUBLE PRECISION NOT NULL,
			recorded_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

func (p *Postgres) LookupSend(ctx context.Context, documentID string) (*SendRecord, error) {
	rec := &SendRecord{}
	var reconciledAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT document_id, broadcast_id, run_id, subject, audience, send_at,
		       reconciled, created_at, reconciled_at
		FROM kitsync_sends
		WHERE document_id = $1
	`, documentID).Scan(
		&rec.DocumentID, &rec.BroadcastID, &rec.RunID, &rec.Subject, &rec.Audience, &rec.SendAt,
		&rec.Reconciled, &rec.CreatedAt, &reconciledAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup send: %w", err)
	}
	if reconciledAt.Valid {
		rec.ReconciledAt = reconciledAt.Time
	}
	return rec, nil
}

func (p *Postgres) RecordSend(ctx context.Context, rec SendRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kitsync_sends (document_id, broadcast_id, run_id, subject, audience, send_at, reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			broadcast_id = $2, run_id = $3, subject = $4, audience = $5,
			send_at = $6, reconciled = $7, created_at = NOW(), reconciled_at = NULL
	`, rec.DocumentID, rec.BroadcastID, rec.RunID, rec.Subject, rec.Audience, rec.SendAt, rec.Reconciled)
	if err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	return nil
}

func (p *Postgres) MarkReconciled(ctx context.Context, documentID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE kitsync_sends SET reconciled = true, reconciled_at = NOW() WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordStats(ctx context.Context, documentID, broadcastID string, s domain.NormalizedStats) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kitsync_stats (document_id, broadcast_id, recipients, opens, clicks, total_clicks,
		                           open_rate, click_rate, click_to_open_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, documentID, broadcastID, s.Recipients, s.Opens, s.Clicks, s.TotalClicks,
		s.OpenRate, s.ClickRate, s.ClickToOpenRate)
	if err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}
