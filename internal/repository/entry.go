package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"medjournal/internal/models"
)

var (
	// ErrStoreUnavailable means the database could not be reached or the
	// statement failed for an operational reason. The write may be retried.
	ErrStoreUnavailable = errors.New("entry store is unavailable")

	// ErrInvalidRecord means the database rejected the row itself, for
	// example a constraint violation. Retrying the same row will not help.
	ErrInvalidRecord = errors.New("entry record was rejected")
)

type EntryRepository interface {
	SaveEntry(ctx context.Context, entry *models.HealthEntry) error
	GetEntriesByWallet(ctx context.Context, walletAddress string) ([]models.HealthEntry, error)
}

type entryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewEntryRepository(db *sqlx.DB, logger *zap.Logger) EntryRepository {
	return &entryRepository{db: db, logger: logger}
}

// SaveEntry inserts one verified entry. Rows are append-only, there is no
// update path. A missing ID is assigned here so callers never reuse one.
func (r *entryRepository) SaveEntry(ctx context.Context, entry *models.HealthEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `INSERT INTO health_entries (id, wallet_address, entry_text, symptoms, mood, severity, summary, confidence_score, data_hash, tx_hash, block_number)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.WalletAddress, entry.EntryText, entry.Symptoms,
		entry.Mood, entry.Severity, entry.Summary, entry.ConfidenceScore,
		entry.DataHash, entry.TxHash, entry.BlockNumber).Scan(&entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
			r.logger.Error("Entry violates a database constraint",
				zap.String("code", string(pqErr.Code)),
				zap.Error(err))
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		r.logger.Error("Failed to save entry", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// GetEntriesByWallet returns all entries for one wallet, newest first. No
// entries is an empty list, not an error.
func (r *entryRepository) GetEntriesByWallet(ctx context.Context, walletAddress string) ([]models.HealthEntry, error) {
	entries := []models.HealthEntry{}
	query := `SELECT id, wallet_address, entry_text, symptoms, mood, severity, summary, confidence_score, data_hash, tx_hash, block_number, created_at
	          FROM health_entries WHERE wallet_address = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &entries, query, walletAddress); err != nil {
		r.logger.Error("Failed to load entries", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}
