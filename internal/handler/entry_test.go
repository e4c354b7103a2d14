package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medjournal/internal/classifier"
	"medjournal/internal/journal"
	"medjournal/internal/middleware"
	"medjournal/internal/models"
	"medjournal/internal/signer"
	"medjournal/internal/wallet"
)

const testAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

type stubClassifier struct {
	err error
}

func (s *stubClassifier) Classify(_ context.Context, text string) (*models.AnalysisResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(text) == "" {
		return nil, classifier.ErrInvalidInput
	}
	return &models.AnalysisResult{
		Symptoms:   []string{"headache"},
		Mood:       "tired",
		Severity:   "low",
		Summary:    "Headache",
		Confidence: 0.9,
	}, nil
}

type stubSigner struct {
	err error
}

func (s *stubSigner) Sign(_ context.Context, account, contentHash string, _ func(string)) (*signer.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &signer.Receipt{Ref: "0xfeed"}, nil
}

type stubRepo struct {
	entries []models.HealthEntry
	saveErr error
}

func (s *stubRepo) SaveEntry(_ context.Context, entry *models.HealthEntry) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	entry.ID = "saved-id"
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubRepo) GetEntriesByWallet(_ context.Context, _ string) ([]models.HealthEntry, error) {
	return s.entries, nil
}

type testEnv struct {
	router *gin.Engine
	token  string
}

func newTestEnv(t *testing.T, cls *stubClassifier, sig *stubSigner, repo *stubRepo) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	wallets := wallet.NewManager(func(account string) *journal.Workflow {
		return journal.NewWorkflow(account, cls, sig, repo, time.Second, logger)
	}, "test-secret", time.Hour, logger)

	entryHandler := NewEntryHandler(wallets, logger)

	router := gin.New()
	router.POST("/api/wallet/connect", entryHandler.ConnectWallet)
	authed := router.Group("/api")
	authed.Use(middleware.SessionMiddleware(wallets, logger))
	{
		authed.POST("/wallet/disconnect", entryHandler.DisconnectWallet)
		authed.POST("/analyze", entryHandler.Analyze)
		authed.POST("/entries/confirm", entryHandler.Confirm)
		authed.POST("/abandon", entryHandler.Abandon)
		authed.GET("/status", entryHandler.Status)
		authed.GET("/entries", entryHandler.ListEntries)
		authed.GET("/entries/export", entryHandler.ExportEntries)
	}

	token, _, err := wallets.Connect(testAddress, 11155111)
	require.NoError(t, err)

	return &testEnv{router: router, token: token}
}

func (e *testEnv) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestConnectWallet(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/wallet/connect", `{"address":"`+testAddress+`","chain_id":11155111}`, false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, testAddress, resp["address"])
}

func TestConnectWallet_InvalidAddress(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/wallet/connect", `{"address":"0x123"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/analyze"},
		{"POST", "/api/entries/confirm"},
		{"GET", "/api/status"},
		{"GET", "/api/entries"},
		{"GET", "/api/entries/export"},
		{"POST", "/api/abandon"},
	} {
		w := env.do(route.method, route.path, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Analysis models.AnalysisResult `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"headache"}, resp.Analysis.Symptoms)
}

func TestAnalyze_BlankText(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/analyze", `{"text":"   "}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_UpstreamDown(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{err: &classifier.UpstreamError{Status: 503, Body: "overloaded"}}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestConfirm_FullFlow(t *testing.T) {
	repo := &stubRepo{}
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, repo)

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/entries/confirm", "", true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Entry models.HealthEntry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0xfeed", resp.Entry.TxHash)
	assert.Len(t, repo.entries, 1)

	// Listing includes the new entry.
	w = env.do("GET", "/api/entries", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Entries []models.HealthEntry `json:"entries"`
		Total   int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestConfirm_WithoutAnalysis(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/entries/confirm", "", true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfirm_UserRejected(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{err: signer.ErrUserRejected}, &stubRepo{})

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/entries/confirm", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "classified", resp["status"])

	// The draft is still staged.
	w = env.do("GET", "/api/status", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var status journal.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, journal.StateClassified, status.State)
}

func TestStatus_Idle(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("GET", "/api/status", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var status journal.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, journal.StateIdle, status.State)
}

func TestAbandon(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/abandon", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/entries/confirm", "", true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportEntries(t *testing.T) {
	repo := &stubRepo{}
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, repo)

	w := env.do("POST", "/api/analyze", `{"text":"bad headache"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do("POST", "/api/entries/confirm", "", true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do("GET", "/api/entries/export", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	body := w.Body.String()
	assert.Contains(t, body, "MedJournal export for "+testAddress)
	assert.Contains(t, body, "Entry: bad headache")
	assert.Contains(t, body, "Reference: 0xfeed")
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{}, &stubSigner{}, &stubRepo{})

	w := env.do("POST", "/api/wallet/disconnect", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/status", "", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
