package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medjournal/internal/classifier"
	"medjournal/internal/journal"
	"medjournal/internal/middleware"
	"medjournal/internal/models"
	"medjournal/internal/repository"
	"medjournal/internal/signer"
	"medjournal/internal/wallet"
)

type EntryHandler interface {
	ConnectWallet(c *gin.Context)
	DisconnectWallet(c *gin.Context)
	Analyze(c *gin.Context)
	Confirm(c *gin.Context)
	Status(c *gin.Context)
	Abandon(c *gin.Context)
	ListEntries(c *gin.Context)
	ExportEntries(c *gin.Context)
}

type entryHandler struct {
	wallets *wallet.Manager
	logger  *zap.Logger
}

func NewEntryHandler(wallets *wallet.Manager, logger *zap.Logger) EntryHandler {
	return &entryHandler{wallets: wallets, logger: logger}
}

// ConnectWallet handles POST /api/wallet/connect
func (h *entryHandler) ConnectWallet(c *gin.Context) {
	var req models.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	token, expiresAt, err := h.wallets.Connect(req.Address, req.ChainID)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		h.logger.Error("Failed to connect wallet", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"address":    req.Address,
	})
}

// DisconnectWallet handles POST /api/wallet/disconnect
func (h *entryHandler) DisconnectWallet(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	h.wallets.Disconnect(sess.Address)
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// Analyze handles POST /api/analyze
func (h *entryHandler) Analyze(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := sess.Workflow.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Entry text must not be empty"})
		case errors.Is(err, journal.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "Another operation is in progress"})
		case errors.Is(err, classifier.ErrNotConfigured):
			h.logger.Error("Analyzer is not configured", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analyzer is not configured"})
		case errors.Is(err, classifier.ErrUnparsable):
			h.logger.Error("Analyzer returned unusable output", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analyzer returned unusable output"})
		case isUpstreamFailure(err):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis service is unavailable, please retry"})
		default:
			h.logger.Error("Failed to analyze entry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze entry"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": result})
}

// Confirm handles POST /api/entries/confirm
func (h *entryHandler) Confirm(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	entry, err := sess.Workflow.Confirm(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, signer.ErrUserRejected):
			// Not an error condition: the draft stays staged for another try.
			c.JSON(http.StatusOK, gin.H{"status": "classified", "detail": "Signing request was rejected"})
		case errors.Is(err, journal.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "Another operation is in progress"})
		case errors.Is(err, journal.ErrNotClassified):
			c.JSON(http.StatusConflict, gin.H{"error": "No analyzed entry to confirm"})
		case errors.Is(err, signer.ErrNotConnected):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		case errors.Is(err, signer.ErrAgentUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Wallet agent is unavailable, please retry"})
		case errors.Is(err, repository.ErrStoreUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Entry store is unavailable, please retry"})
		default:
			h.logger.Error("Failed to confirm entry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm entry"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// Status handles GET /api/status
func (h *entryHandler) Status(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	c.JSON(http.StatusOK, sess.Workflow.Status())
}

// Abandon handles POST /api/abandon
func (h *entryHandler) Abandon(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	if err := sess.Workflow.Abandon(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Another operation is in progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "idle"})
}

// ListEntries handles GET /api/entries
func (h *entryHandler) ListEntries(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	entries, err := sess.Workflow.Entries(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list entries", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Entry store is unavailable, please retry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

// ExportEntries handles GET /api/entries/export. The export is a plain-text
// rendering of the verified history, one block per entry, newest first.
func (h *entryHandler) ExportEntries(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
		return
	}

	entries, err := sess.Workflow.Entries(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to export entries", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Entry store is unavailable, please retry"})
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("MedJournal export for %s\n", sess.Address))
	b.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Entries: %d\n\n", len(entries)))

	for _, entry := range entries {
		b.WriteString(fmt.Sprintf("--- %s ---\n", entry.CreatedAt.UTC().Format(time.RFC3339)))
		b.WriteString(fmt.Sprintf("Entry: %s\n", entry.EntryText))
		b.WriteString(fmt.Sprintf("Symptoms: %s\n", strings.Join(entry.Symptoms, ", ")))
		b.WriteString(fmt.Sprintf("Mood: %s\n", entry.Mood))
		b.WriteString(fmt.Sprintf("Severity: %s\n", entry.Severity))
		b.WriteString(fmt.Sprintf("Summary: %s\n", entry.Summary))
		if entry.ConfidenceScore != nil {
			b.WriteString(fmt.Sprintf("Confidence: %.2f\n", *entry.ConfidenceScore))
		}
		b.WriteString(fmt.Sprintf("Data hash: %s\n", entry.DataHash))
		b.WriteString(fmt.Sprintf("Reference: %s\n", entry.TxHash))
		if entry.BlockNumber != nil {
			b.WriteString(fmt.Sprintf("Block: %d\n", *entry.BlockNumber))
		}
		b.WriteString("\n")
	}

	filename := fmt.Sprintf("medjournal-%s.txt", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))
}

func sessionFrom(c *gin.Context) *wallet.Session {
	value, ok := c.Get(middleware.SessionKey)
	if !ok {
		return nil
	}
	sess, ok := value.(*wallet.Session)
	if !ok {
		return nil
	}
	return sess
}

// isUpstreamFailure reports whether the analysis failed because of the
// upstream model rather than the request itself.
func isUpstreamFailure(err error) bool {
	var upstream *classifier.UpstreamError
	if errors.As(err, &upstream) {
		return true
	}
	return errors.Is(err, classifier.ErrEmptyResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}
