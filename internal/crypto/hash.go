package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"medjournal/internal/models"
)

// entryPayload binds the fields covered by the content hash. The field order
// is fixed so the canonical JSON is stable across runs.
type entryPayload struct {
	Entry     string                `json:"entry"`
	Analysis  models.AnalysisResult `json:"analysis"`
	Timestamp string                `json:"timestamp"`
	Account   string                `json:"account"`
}

// ContentHash returns the 0x-prefixed Keccak-256 digest of the canonical
// entry payload. Identical inputs always produce identical digests, which is
// what lets a stored entry be re-verified later.
func ContentHash(text string, analysis models.AnalysisResult, ts time.Time, account string) (string, error) {
	payload := entryPayload{
		Entry:     text,
		Analysis:  analysis,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Account:   account,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry payload: %w", err)
	}

	return Keccak256Hex(raw), nil
}

// Keccak256Hex computes the Keccak-256 digest of data and returns it as a
// 0x-prefixed hex string, the same shape as an Ethereum transaction hash.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
