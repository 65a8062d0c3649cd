package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/docsigner/docsigner-go/pkg/contractCaller"
	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"go.uber.org/zap"
)

/*
Server forwards signed documents to the DocumentSigner contract and pays the
gas from its own account.

  GET  /get_address                    relay account
  POST /sign_document_contract         signDocument(document_hash, signer_address, signature)
  POST /invalidate_signature_contract  invalidateSignature(document_hash, signer_address, signature)
  GET  /receipts?document_hash=0x..    receipts recorded for a document
  GET  /healthz                        receipt store health

Status codes:
  200 transaction mined with status 1
  400 invalid body, simulated revert, or mined with status 0 (transaction_status: failed)
  401 missing or invalid bearer token (only when a token verifier is configured)
  429 client exceeded the rate limit
  500 anything else

Every error body is {"error": "..."}.
*/
type Server struct {
	contract contractCaller.IDocumentSignerCaller
	signer   transactionSigner.ITransactionSigner
	store    persistence.IReceiptStore
	verifier TokenVerifier
	limiter  *clientLimiter
	logger   *zap.Logger
	now      func() time.Time

	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
}

type ServerConfig struct {
	Address  string
	Contract contractCaller.IDocumentSignerCaller
	// Signer sends the relay's transactions
	Signer transactionSigner.ITransactionSigner
	Store  persistence.IReceiptStore
	// Verifier enables bearer-token auth when set
	Verifier TokenVerifier
	// RateLimit is requests per second per client; zero disables limiting
	RateLimit float64
	RateBurst int
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Contract == nil {
		return nil, fmt.Errorf("document signer contract is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("transaction signer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("receipt store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		contract: cfg.Contract,
		signer:   cfg.Signer,
		store:    cfg.Store,
		verifier: cfg.Verifier,
		logger:   logger,
		now:      now,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathGetAddress, s.handleGetAddress)
	mux.HandleFunc(PathSignDocument, s.handleSignDocument)
	mux.HandleFunc(PathInvalidateSignature, s.handleInvalidateSignature)
	mux.HandleFunc(PathReceipts, s.handleReceipts)
	mux.HandleFunc(PathHealth, s.handleHealth)

	s.handler = s.withRecover(s.withRequestID(s.withCORS(s.withLogging(s.withRateLimit(s.withAuth(mux))))))
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		s.logger.Sugar().Infow("Starting relay HTTP server",
			"address", ln.Addr().String(),
			"relayAccount", s.signer.GetFromAddress().Hex(),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("Relay HTTP server error", "error", err)
		}
	}()
	return nil
}

// Addr is the bound listen address once Start has returned
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop waits for in-flight requests up to ctx's deadline
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.handler
}
