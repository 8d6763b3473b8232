package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/config"
	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/handlers"
	middlewareCustom "github.com/colefleming/vouch/internal/middleware"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/routes"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
)

// SentNotification is a captured approver notification
type SentNotification struct {
	RequestID  string
	Requester  string
	Recipients []string
}

// MockNotifier captures notifications for test assertions
type MockNotifier struct {
	Sent []SentNotification
	mu   sync.Mutex
}

func (m *MockNotifier) NotifyPendingRequest(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(recipients))
	for _, r := range recipients {
		names = append(names, r.Username)
	}

	m.Sent = append(m.Sent, SentNotification{
		RequestID:  req.ID.String(),
		Requester:  requester.Username,
		Recipients: names,
	})
	return nil
}

// GetLastNotification returns the most recent captured notification
func (m *MockNotifier) GetLastNotification() *SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *MockNotifier
	Config   *config.Config

	LoginService    *services.LoginService
	ApprovalService *services.ApprovalService
	InviteService   *services.InviteService
	SessionService  *services.SessionService
}

// TestPolicy returns the policy used by integration servers. Trust-first-
// device is off so every login exercises the approval flow.
func TestPolicy() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        "test-secret-32-characters-long-for-testing",
		ApprovalRequired: true,
		TrustFirstDevice: false,
		AttemptsPerHour:  3,
		PeerThreshold:    2,
		VerificationMode: config.VerificationModeStandard,
		RequestTTL:       7 * 24 * time.Hour,
		SessionTTL:       30 * 24 * time.Hour,
		InviteTTL:        14 * 24 * time.Hour,
		SweepInterval:    1 * time.Hour,
	}
}

// NewTestServer initializes a complete HTTP server with real database and a
// mocked notifier
func NewTestServer(db *database.DB) *TestServer {
	return NewTestServerWithPolicy(db, TestPolicy())
}

// NewTestServerWithPolicy builds the server around an explicit policy
func NewTestServerWithPolicy(db *database.DB, authCfg config.AuthConfig) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: authCfg,
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
	}

	userRepo, sessionRepo, requestRepo, attemptRepo, auditRepo, securityRepo, inviteRepo :=
		InitializeRepositories(db)

	notifier := &MockNotifier{}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	policy := services.NewStaticPolicy(cfg.Auth)

	auditService := services.NewAuditService(auditRepo, securityRepo, logger)
	sessionService := services.NewSessionService(sessionRepo, userRepo, tokenManager, auditService, logger, cfg.Auth.SessionTTL)
	rateLimitService := services.NewRateLimitService(attemptRepo, auditService, policy, logger)
	loginService := services.NewLoginService(userRepo, requestRepo, sessionService, rateLimitService, auditService, notifier, policy, logger)
	approvalService := services.NewApprovalService(requestRepo, userRepo, sessionService, auditService, policy, logger)
	inviteService := services.NewInviteService(inviteRepo, userRepo, sessionService, auditService, policy, logger)

	ipConfig := pkghttp.DefaultIPConfig()
	authHandler := handlers.NewAuthHandler(loginService, inviteService, sessionService, ipConfig)
	approvalHandler := handlers.NewApprovalHandler(approvalService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	auditHandler := handlers.NewAuditHandler(auditService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, approvalHandler, inviteHandler, auditHandler, sessionService, ipConfig)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:          server,
		DB:              db,
		Notifier:        notifier,
		Config:          cfg,
		LoginService:    loginService,
		ApprovalService: approvalService,
		InviteService:   inviteService,
		SessionService:  sessionService,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if headers != nil {
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts the error message from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
