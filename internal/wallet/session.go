package wallet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"medjournal/internal/journal"
	"medjournal/internal/models"
)

var (
	// ErrInvalidAddress means the supplied wallet address is not a valid
	// 0x-prefixed 20-byte hex address.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrNoSession means the token does not resolve to a connected wallet.
	ErrNoSession = errors.New("wallet session not found")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Session is one connected wallet and its entry workflow.
type Session struct {
	Address     string
	ChainID     int64
	ConnectedAt time.Time
	Workflow    *journal.Workflow
}

// Manager tracks connected wallets and issues session tokens. Sessions are
// keyed by lowercased address, so reconnecting the same wallet replaces its
// session rather than creating a second one.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	newWorkflow func(account string) *journal.Workflow
	jwtSecret   []byte
	tokenTTL    time.Duration
	logger      *zap.Logger
}

func NewManager(newWorkflow func(account string) *journal.Workflow, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		newWorkflow: newWorkflow,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// Connect registers a wallet and returns a signed session token. A wallet
// that is already connected gets a fresh session and a fresh workflow; any
// unconfirmed draft from the previous session is gone.
func (m *Manager) Connect(address string, chainID int64) (string, time.Time, error) {
	if !addressPattern.MatchString(address) {
		return "", time.Time{}, ErrInvalidAddress
	}

	key := strings.ToLower(address)

	m.mu.Lock()
	m.sessions[key] = &Session{
		Address:     address,
		ChainID:     chainID,
		ConnectedAt: time.Now().UTC(),
		Workflow:    m.newWorkflow(address),
	}
	m.mu.Unlock()

	expirationTime := time.Now().Add(m.tokenTTL)
	claims := &models.Claims{
		Address: address,
		ChainID: chainID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.jwtSecret)
	if err != nil {
		m.logger.Error("Failed to generate session token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	m.logger.Info("Wallet connected",
		zap.String("address", address),
		zap.Int64("chain_id", chainID))
	return tokenString, expirationTime, nil
}

// Disconnect removes the wallet's session. Unknown addresses are a no-op.
func (m *Manager) Disconnect(address string) {
	key := strings.ToLower(address)

	m.mu.Lock()
	_, existed := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if existed {
		m.logger.Info("Wallet disconnected", zap.String("address", address))
	}
}

// Resolve validates a session token and returns the session it belongs to.
func (m *Manager) Resolve(tokenString string) (*Session, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	m.mu.RLock()
	sess, ok := m.sessions[strings.ToLower(claims.Address)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}
