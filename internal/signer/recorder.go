package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Recorder submits entry hashes to the journal contract through the wallet
// agent and waits for the transaction to be confirmed on chain.
type Recorder struct {
	rpc          *rpcClient
	contract     string
	chainID      int64
	pollInterval time.Duration
	logger       *zap.Logger
}

type submitResult struct {
	TxHash string `json:"tx_hash"`
}

type receiptResult struct {
	Confirmed   bool  `json:"confirmed"`
	BlockNumber int64 `json:"block_number"`
}

// Sign records contentHash on chain for account. The call has two phases:
// submission returns as soon as the agent accepts the transaction (surfaced
// through the submitted callback), then the receipt is polled until finality.
// Confirmation latency is controlled by the chain, so the wait is bounded
// only by ctx.
func (r *Recorder) Sign(ctx context.Context, account, contentHash string, submitted func(txHash string)) (*Receipt, error) {
	if account == "" {
		return nil, ErrNotConnected
	}

	r.checkNetwork(ctx)

	result, err := r.rpc.call(ctx, "medjournal_recordHash", []interface{}{r.contract, account, contentHash})
	if err != nil {
		return nil, err
	}

	var sub submitResult
	if err := json.Unmarshal(result, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode submission result: %w", err)
	}
	if sub.TxHash == "" {
		return nil, fmt.Errorf("agent accepted the submission but returned no transaction hash")
	}

	r.logger.Info("Entry hash submitted, awaiting confirmation",
		zap.String("tx_hash", sub.TxHash),
		zap.String("account", account))
	if submitted != nil {
		submitted(sub.TxHash)
	}

	return r.waitForReceipt(ctx, sub.TxHash)
}

// waitForReceipt polls the agent until the transaction is included in a
// block or ctx is done.
func (r *Recorder) waitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	interval := r.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			result, err := r.rpc.call(ctx, "medjournal_getReceipt", []interface{}{txHash})
			if err != nil {
				// A transient agent failure while a transaction is pending is
				// retried on the next tick; the submission itself is done.
				if errors.Is(err, ErrAgentUnavailable) {
					r.logger.Warn("Receipt poll failed, will retry", zap.Error(err))
					continue
				}
				return nil, err
			}

			var rec receiptResult
			if err := json.Unmarshal(result, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode receipt: %w", err)
			}

			if !rec.Confirmed {
				continue
			}

			block := rec.BlockNumber
			r.logger.Info("Entry hash confirmed on chain",
				zap.String("tx_hash", txHash),
				zap.Int64("block_number", block))
			return &Receipt{Ref: txHash, BlockNumber: &block}, nil
		}
	}
}

func (r *Recorder) checkNetwork(ctx context.Context) {
	warnOnNetworkMismatch(ctx, r.rpc, r.chainID, r.logger)
}
