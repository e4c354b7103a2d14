package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medjournal/internal/crypto"
)

// MessageFallback signs the content hash as a plain wallet message instead
// of recording it on chain. The returned reference is a Keccak-256 digest of
// the signature so it has the same shape as a transaction hash; there is no
// block number in this mode.
type MessageFallback struct {
	rpc     *rpcClient
	chainID int64
	logger  *zap.Logger
}

// Sign asks the wallet agent to sign a message binding the content hash to a
// timestamp. One prompt per call, no retries.
func (s *MessageFallback) Sign(ctx context.Context, account, contentHash string, _ func(txHash string)) (*Receipt, error) {
	if account == "" {
		return nil, ErrNotConnected
	}

	warnOnNetworkMismatch(ctx, s.rpc, s.chainID, s.logger)

	ts := time.Now().UTC().Format(time.RFC3339)
	message := fmt.Sprintf("MedJournal Entry Hash: %s\nTimestamp: %s", contentHash, ts)

	result, err := s.rpc.call(ctx, "personal_sign", []interface{}{message, account})
	if err != nil {
		return nil, err
	}

	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if signature == "" {
		return nil, fmt.Errorf("agent returned an empty signature")
	}

	ref := crypto.Keccak256Hex([]byte(signature + ts))
	s.logger.Info("Entry hash signed",
		zap.String("account", account),
		zap.String("reference", ref))

	return &Receipt{Ref: ref}, nil
}
