// Package ledger records every broadcast kitsync creates, independently of
// the Notion write-back. A send whose write-back failed stays unreconciled in
// the ledger, and the send job refuses to create a second broadcast for that
// document until an operator reconciles it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
)

// ErrNotFound is returned by MarkReconciled when no send is recorded.
var ErrNotFound = errors.New("ledger: send record not found")

// SendRecord is one broadcast creation.
type SendRecord struct {
	DocumentID   string    `json:"document_id" dynamodbav:"document_id"`
	BroadcastID  string    `json:"broadcast_id" dynamodbav:"broadcast_id"`
	RunID        string    `json:"run_id" dynamodbav:"run_id"`
	Subject      string    `json:"subject" dynamodbav:"subject"`
	Audience     string    `json:"audience" dynamodbav:"audience"`
	SendAt       time.Time `json:"send_at" dynamodbav:"send_at"`
	Reconciled   bool      `json:"reconciled" dynamodbav:"reconciled"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	ReconciledAt time.Time `json:"reconciled_at,omitempty" dynamodbav:"reconciled_at,omitempty"`
}

// Ledger persists send and stats records.
type Ledger interface {
	// LookupSend returns the latest send for a document, or nil if none.
	LookupSend(ctx context.Context, documentID string) (*SendRecord, error)
	RecordSend(ctx context.Context, rec SendRecord) error
	MarkReconciled(ctx context.Context, documentID string) error
	RecordStats(ctx context.Context, documentID, broadcastID string, s domain.NormalizedStats) error
}

// New builds the ledger backend named in cfg. db is required for the postgres
// backend and ignored otherwise.
func New(ctx context.Context, cfg config.LedgerConfig, db *sql.DB) (Ledger, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("ledger: postgres backend needs a database connection")
		}
		pg := NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case "dynamodb":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
		if cfg.AWSProfile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for ledger: %w", err)
		}
		return NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable), nil
	default:
		return nil, fmt.Errorf("ledger: unknown type %q", cfg.Type)
	}
}
