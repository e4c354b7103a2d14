package signer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotConnected means no wallet account was supplied for the request.
	ErrNotConnected = errors.New("wallet is not connected")

	// ErrUserRejected means the user declined the signing prompt.
	ErrUserRejected = errors.New("user rejected the signing request")

	// ErrAgentUnavailable means the wallet agent could not be reached.
	ErrAgentUnavailable = errors.New("wallet agent is unreachable")

	// ErrWrongNetwork means the agent is connected to a different chain than
	// configured. Advisory: callers log it, they do not fail on it.
	ErrWrongNetwork = errors.New("wallet agent is on a different network")
)

// Receipt is the proof returned once an entry hash has been recorded.
// Ref is always a 0x-prefixed 64-hex-character string; callers treat it as
// opaque and never interpret its internal structure.
type Receipt struct {
	Ref         string
	BlockNumber *int64
}

// Signer obtains an external reference for a content hash. The submitted
// callback, when non-nil, is invoked with the transaction hash as soon as the
// agent accepts a submission, before confirmation is observed; strategies
// without a submission phase never call it.
//
// Implementations never retry internally. A failed call leaves nothing
// behind and calling again is an independent new attempt.
type Signer interface {
	Sign(ctx context.Context, account, contentHash string, submitted func(txHash string)) (*Receipt, error)
}

// Config selects and parametrizes the signing strategy.
type Config struct {
	Mode            string // "recorder" or "message"
	AgentURL        string
	ContractAddress string
	ChainID         int64
	ConfirmPoll     time.Duration
	RequestTimeout  time.Duration
}

// New builds the configured signing strategy. The mode is an explicit
// capability switch; there is no runtime fallback from one strategy to the
// other.
func New(cfg Config, logger *zap.Logger) (Signer, error) {
	if cfg.AgentURL == "" {
		return nil, fmt.Errorf("wallet agent URL is required")
	}

	rpc := newRPCClient(cfg.AgentURL, cfg.RequestTimeout)

	switch cfg.Mode {
	case "recorder":
		if cfg.ContractAddress == "" {
			return nil, fmt.Errorf("recorder mode requires a contract address")
		}
		return &Recorder{
			rpc:          rpc,
			contract:     cfg.ContractAddress,
			chainID:      cfg.ChainID,
			pollInterval: cfg.ConfirmPoll,
			logger:       logger,
		}, nil
	case "message":
		return &MessageFallback{
			rpc:     rpc,
			chainID: cfg.ChainID,
			logger:  logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown signer mode %q", cfg.Mode)
	}
}
