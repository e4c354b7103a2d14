package models

import (
	"time"

	"github.com/lib/pq"
)

// Severity levels the analyzer may assign to an entry.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ValidSeverity reports whether s is one of the known severity levels.
func ValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// AnalysisResult is the normalized output of the AI analyzer for one entry.
type AnalysisResult struct {
	Symptoms   []string `json:"symptoms"`
	Mood       string   `json:"mood"`
	Severity   string   `json:"severity"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
}

// HealthEntry represents a verified entry stored in the 'health_entries' table.
// Entries are append-only: once written they are never updated or deleted.
type HealthEntry struct {
	ID              string         `db:"id" json:"id"`
	WalletAddress   string         `db:"wallet_address" json:"wallet_address"`
	EntryText       string         `db:"entry_text" json:"entry_text"`
	Symptoms        pq.StringArray `db:"symptoms" json:"symptoms"`
	Mood            string         `db:"mood" json:"mood"`
	Severity        string         `db:"severity" json:"severity"`
	Summary         string         `db:"summary" json:"summary"`
	ConfidenceScore *float64       `db:"confidence_score" json:"confidence_score,omitempty"`
	DataHash        string         `db:"data_hash" json:"data_hash"`
	TxHash          string         `db:"tx_hash" json:"tx_hash"`
	BlockNumber     *int64         `db:"block_number" json:"block_number,omitempty"` // Nullable: message-signature entries have no block
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// ConnectRequest is the body of POST /api/wallet/connect.
type ConnectRequest struct {
	Address string `json:"address" binding:"required"`
	ChainID int64  `json:"chain_id"`
}
