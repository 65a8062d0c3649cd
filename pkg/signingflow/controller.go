package signingflow

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/docsigner/docsigner-go/pkg/contractCaller"
	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/docsigner/docsigner-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// RelayClient forwards signed requests to a relay service
type RelayClient interface {
	SignDocument(ctx context.Context, req *types.RelayRequest) (*types.RelayResponse, error)
	InvalidateSignature(ctx context.Context, req *types.RelayRequest) (*types.RelayResponse, error)
}

type Config struct {
	Session  *wallet.Session
	Contract contractCaller.IDocumentSignerCaller
	// Relay may be nil when only Direct submission is used
	Relay RelayClient
	// ChainID, when set, must match the wallet's chain before signing
	ChainID *big.Int
	Mode    types.SubmissionMode
	Logger  *zap.Logger
}

// Controller sequences digest, signature and submission for one document at a time
type Controller struct {
	session  *wallet.Session
	contract contractCaller.IDocumentSignerCaller
	relay    RelayClient
	chainID  *big.Int
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	mode        types.SubmissionMode
	source      string
	request     *types.SigningRequest
	busy        bool
	lastReceipt *types.SubmissionReceipt
	lastErr     error
	observers   map[int]Observer
	nextID      int

	unsubscribeSession func()
}

func NewController(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("wallet session is required")
	}
	if cfg.Contract == nil {
		return nil, fmt.Errorf("document signer contract is required")
	}
	if err := validateMode(cfg.Mode); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		session:   cfg.Session,
		contract:  cfg.Contract,
		relay:     cfg.Relay,
		chainID:   cfg.ChainID,
		logger:    logger,
		state:     StateIdle,
		mode:      cfg.Mode,
		observers: make(map[int]Observer),
	}
	c.unsubscribeSession = cfg.Session.OnAccountChange(c.handleAccountChange)
	return c, nil
}

// Close detaches the controller from the wallet session
func (c *Controller) Close() {
	if c.unsubscribeSession != nil {
		c.unsubscribeSession()
	}
}

func validateMode(mode types.SubmissionMode) error {
	switch mode {
	case types.SubmissionMode_Direct, types.SubmissionMode_Relayed:
		return nil
	default:
		return newErrorf(KindInput, "setMode", "unsupported submission mode %s", mode)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	account, _ := c.session.Account()
	s := Snapshot{
		State:     c.state,
		Mode:      c.mode,
		Source:    c.source,
		Request:   copyRequest(c.request),
		Account:   account,
		Busy:      c.busy,
		LastError: c.lastErr,
	}
	if c.request != nil {
		s.Digest = c.request.Digest
	}
	if c.lastReceipt != nil {
		receipt := *c.lastReceipt
		s.LastReceipt = &receipt
	}
	return s
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Observe registers fn for state changes and returns a function that removes it
func (c *Controller) Observe(fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// unlockAndNotify releases the lock and then calls observers with the state
// as it was at release.
func (c *Controller) unlockAndNotify() {
	snapshot := c.snapshotLocked()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// SetMode changes the transport. A pending signature is kept.
func (c *Controller) SetMode(mode types.SubmissionMode) error {
	if err := validateMode(mode); err != nil {
		return err
	}
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return newErrorf(KindInput, "setMode", "operation in progress")
	}
	c.mode = mode
	c.unlockAndNotify()
	return nil
}

// ComputeDigest hashes fileBytes and makes it the current document
func (c *Controller) ComputeDigest(fileBytes []byte) (types.DocumentDigest, error) {
	d := digest.ComputeDigest(fileBytes)
	if err := c.setDigest("computeDigest", "", d); err != nil {
		return types.DocumentDigest{}, err
	}
	return d, nil
}

// SelectFile reads and hashes the file at path
func (c *Controller) SelectFile(path string) (types.DocumentDigest, error) {
	const op = "selectFile"
	if strings.TrimSpace(path) == "" {
		return types.DocumentDigest{}, c.recordFailure(newErrorf(KindInput, op, "no file selected"))
	}
	if err := c.checkIdle(op); err != nil {
		return types.DocumentDigest{}, err
	}
	d, err := digest.FromFile(path)
	if err != nil {
		return types.DocumentDigest{}, c.recordFailure(newError(KindIO, op, err))
	}
	if err := c.setDigest(op, path, d); err != nil {
		return types.DocumentDigest{}, err
	}
	return d, nil
}

// SelectDocument hashes the contents of r; name is only kept for display
func (c *Controller) SelectDocument(name string, r io.Reader) (types.DocumentDigest, error) {
	const op = "selectDocument"
	if r == nil {
		return types.DocumentDigest{}, c.recordFailure(newErrorf(KindInput, op, "no document given"))
	}
	if err := c.checkIdle(op); err != nil {
		return types.DocumentDigest{}, err
	}
	d, err := digest.FromReader(r)
	if err != nil {
		return types.DocumentDigest{}, c.recordFailure(newError(KindIO, op, err))
	}
	if err := c.setDigest(op, name, d); err != nil {
		return types.DocumentDigest{}, err
	}
	return d, nil
}

func (c *Controller) checkIdle(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return newErrorf(KindInput, op, "operation in progress")
	}
	return nil
}

func (c *Controller) recordFailure(err *Error) error {
	c.mu.Lock()
	c.lastErr = err
	c.unlockAndNotify()
	return err
}

// setDigest replaces the current document; any signature for the previous
// document is discarded.
func (c *Controller) setDigest(op string, source string, d types.DocumentDigest) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return newErrorf(KindInput, op, "operation in progress")
	}
	if c.request != nil && len(c.request.Signature) > 0 {
		c.logger.Sugar().Infow("Discarding signature for previous document",
			"previousDigest", c.request.Digest.Hex(),
			"digest", d.Hex(),
		)
	}
	c.request = &types.SigningRequest{Digest: d}
	c.source = source
	c.state = StateDigestReady
	c.lastErr = nil
	c.unlockAndNotify()

	c.logger.Sugar().Infow("Document digest computed", "source", source, "digest", d.Hex())
	return nil
}

// RequestSignature fetches the account nonce and asks the wallet for an
// EIP-712 signature over {digest, nonce}.
func (c *Controller) RequestSignature(ctx context.Context) (*types.SigningRequest, error) {
	const op = "requestSignature"

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, newErrorf(KindInput, op, "operation in progress")
	}
	if c.request == nil || c.request.Digest == (common.Hash{}) {
		c.lastErr = newErrorf(KindInput, op, "no document digest; select a file first")
		err := c.lastErr
		c.unlockAndNotify()
		return nil, err
	}
	account, connected := c.session.Account()
	if !connected {
		c.lastErr = newErrorf(KindInput, op, "wallet not connected")
		err := c.lastErr
		c.unlockAndNotify()
		return nil, err
	}
	d := c.request.Digest
	c.busy = true
	c.unlockAndNotify()

	nonce, sig, err := c.signDocument(ctx, op, d, account)

	c.mu.Lock()
	c.busy = false
	if err == nil {
		if current, _ := c.session.Account(); current != account {
			err = newErrorf(KindInput, op, "account changed from %s to %s while signing", account.Hex(), current.Hex())
		}
	}
	if err != nil {
		c.lastErr = err
		c.unlockAndNotify()
		return nil, err
	}
	c.request = &types.SigningRequest{
		Digest:    d,
		Signer:    account,
		Nonce:     nonce,
		Signature: sig,
	}
	c.state = StateSignatureReady
	c.lastErr = nil
	result := copyRequest(c.request)
	c.unlockAndNotify()

	c.logger.Sugar().Infow("Document signed",
		"digest", d.Hex(),
		"signer", account.Hex(),
		"nonce", nonce,
	)
	return result, nil
}

// signDocument reads a fresh nonce and obtains the typed-data signature
func (c *Controller) signDocument(ctx context.Context, op string, d types.DocumentDigest, account common.Address) (uint32, []byte, error) {
	w := c.session.Wallet()

	chainID, err := w.ChainID(ctx)
	if err != nil {
		return 0, nil, newError(KindProvider, op, fmt.Errorf("failed to get chain id: %w", err))
	}
	if c.chainID != nil && c.chainID.Cmp(chainID) != 0 {
		return 0, nil, newErrorf(KindInput, op, "wallet is on chain %s, expected %s", chainID, c.chainID)
	}

	nonce, err := c.contract.GetNonce(ctx, account)
	if err != nil {
		return 0, nil, newError(KindProvider, op, err)
	}

	td, err := eip712.NewDocumentTypedData(eip712.NewDocumentSignerDomain(chainID, c.contract.DocumentSignerAddress()), d, nonce)
	if err != nil {
		return 0, nil, newError(KindInput, op, err)
	}

	sig, err := w.SignTypedData(ctx, account, td)
	if err != nil {
		if wallet.IsUserRejected(err) {
			return 0, nil, newError(KindUserRejected, op, err)
		}
		return 0, nil, newError(KindProvider, op, err)
	}
	return nonce, sig, nil
}

// Submit commits the current signing request with mode
func (c *Controller) Submit(ctx context.Context, mode types.SubmissionMode) (*types.SubmissionReceipt, error) {
	c.mu.Lock()
	req := copyRequest(c.request)
	c.mu.Unlock()
	return c.SubmitRequest(ctx, req, mode)
}

// SubmitRequest commits req with mode. req is validated before any transport is touched.
func (c *Controller) SubmitRequest(ctx context.Context, req *types.SigningRequest, mode types.SubmissionMode) (*types.SubmissionReceipt, error) {
	const op = "submit"

	if err := validateMode(mode); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, newErrorf(KindInput, op, "operation in progress")
	}
	if missing := req.Missing(); len(missing) > 0 {
		c.lastErr = newErrorf(KindInput, op, "incomplete signing request, missing %s", strings.Join(missing, ", "))
		err := c.lastErr
		c.unlockAndNotify()
		return nil, err
	}
	account, connected := c.session.Account()
	if !connected || account != req.Signer {
		c.lastErr = newErrorf(KindInput, op, "signer %s is not the connected account", req.Signer.Hex())
		err := c.lastErr
		c.unlockAndNotify()
		return nil, err
	}
	req = copyRequest(req)
	previous := c.state
	c.busy = true
	c.state = StateSubmitting
	c.mode = mode
	c.unlockAndNotify()

	c.logger.Sugar().Infow("Submitting signature",
		"mode", mode.String(),
		"digest", req.Digest.Hex(),
		"signer", req.Signer.Hex(),
		"nonce", req.Nonce,
	)
	receipt, err := c.dispatch(ctx, op, types.Operation_SignDocument, req, mode)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		c.unlockAndNotify()
		c.logger.Sugar().Errorw("Submission failed", "mode", mode.String(), "error", err)

		// Failed is per attempt; fall back so the step can be retried
		c.mu.Lock()
		if c.state == StateFailed {
			c.state = previous
			if current, _ := c.session.Account(); previous == StateSignatureReady && current != req.Signer {
				c.dropSignatureLocked()
			}
		}
		c.unlockAndNotify()
		return nil, err
	}
	c.lastReceipt = receipt
	c.lastErr = nil
	c.state = StateCommitted
	c.unlockAndNotify()

	c.logger.Sugar().Infow("Signature committed",
		"txHash", receipt.TransactionHash.Hex(),
		"blockNumber", receipt.BlockNumber,
	)

	// only the committed document is cleared; a request for another digest
	// leaves the current document in place
	c.mu.Lock()
	if c.state == StateCommitted {
		if c.request == nil || c.request.Digest == req.Digest {
			c.state = StateIdle
			c.request = nil
			c.source = ""
		} else {
			c.state = previous
		}
	}
	c.unlockAndNotify()
	return receipt, nil
}

// Invalidate revokes signer's stored signature for d. It signs a fresh
// request with the current nonce and leaves the main flow untouched.
func (c *Controller) Invalidate(ctx context.Context, d types.DocumentDigest, signer common.Address, mode types.SubmissionMode) (*types.SubmissionReceipt, error) {
	const op = "invalidate"

	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if d == (common.Hash{}) {
		return nil, newErrorf(KindInput, op, "document digest is required")
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, newErrorf(KindInput, op, "operation in progress")
	}
	account, connected := c.session.Account()
	if !connected || account != signer {
		c.mu.Unlock()
		return nil, newErrorf(KindUnauthorized, op, "only %s can invalidate its own signature", signer.Hex())
	}
	c.busy = true
	c.unlockAndNotify()

	receipt, err := c.invalidate(ctx, op, d, account, mode)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.lastErr = err
	} else {
		c.lastReceipt = receipt
		c.lastErr = nil
	}
	c.unlockAndNotify()
	return receipt, err
}

func (c *Controller) invalidate(ctx context.Context, op string, d types.DocumentDigest, account common.Address, mode types.SubmissionMode) (*types.SubmissionReceipt, error) {
	nonce, sig, err := c.signDocument(ctx, op, d, account)
	if err != nil {
		return nil, err
	}
	req := &types.SigningRequest{Digest: d, Signer: account, Nonce: nonce, Signature: sig}

	c.logger.Sugar().Infow("Invalidating signature",
		"mode", mode.String(),
		"digest", d.Hex(),
		"signer", account.Hex(),
		"nonce", nonce,
	)
	return c.dispatch(ctx, op, types.Operation_InvalidateSignature, req, mode)
}

func (c *Controller) dispatch(ctx context.Context, op string, operation types.Operation, req *types.SigningRequest, mode types.SubmissionMode) (*types.SubmissionReceipt, error) {
	var (
		receipt *types.SubmissionReceipt
		err     error
	)
	switch mode {
	case types.SubmissionMode_Relayed:
		receipt, err = c.sendRelayed(ctx, op, operation, req)
	default:
		receipt, err = c.sendDirect(ctx, op, operation, req)
	}
	if err != nil {
		return nil, err
	}
	receipt.Mode = mode
	receipt.Operation = operation
	receipt.Digest = req.Digest
	receipt.Signer = req.Signer
	receipt.Nonce = req.Nonce
	return receipt, nil
}

func (c *Controller) sendDirect(ctx context.Context, op string, operation types.Operation, req *types.SigningRequest) (*types.SubmissionReceipt, error) {
	txSigner, err := c.session.Wallet().TransactionSigner(ctx, req.Signer)
	if err != nil {
		return nil, newError(KindProvider, op, err)
	}

	var receipt *ethereumTypes.Receipt
	switch operation {
	case types.Operation_InvalidateSignature:
		receipt, err = c.contract.InvalidateSignature(ctx, txSigner, req.Digest, req.Signer, req.Signature)
	default:
		receipt, err = c.contract.SignDocument(ctx, txSigner, req.Digest, req.Signer, req.Signature)
	}
	if err != nil {
		return nil, classifyTransactionError(op, err)
	}

	out := &types.SubmissionReceipt{
		TransactionHash: receipt.TxHash,
		GasUsed:         receipt.GasUsed,
		Status:          types.TransactionStatus_Success,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func classifyTransactionError(op string, err error) error {
	switch {
	case wallet.IsUserRejected(err):
		return newError(KindTransactionRejected, op, err)
	case caller.IsRevert(err):
		return newError(KindTransactionReverted, op, err)
	default:
		return newError(KindProvider, op, err)
	}
}

func (c *Controller) sendRelayed(ctx context.Context, op string, operation types.Operation, req *types.SigningRequest) (*types.SubmissionReceipt, error) {
	if c.relay == nil {
		return nil, newErrorf(KindInput, op, "relay is not configured")
	}

	var (
		resp *types.RelayResponse
		err  error
	)
	body := types.NewRelayRequest(req)
	switch operation {
	case types.Operation_InvalidateSignature:
		resp, err = c.relay.InvalidateSignature(ctx, body)
	default:
		resp, err = c.relay.SignDocument(ctx, body)
	}
	if err != nil {
		return nil, newError(KindRelay, op, err)
	}
	// any 2xx reply commits unless the relay reports the transaction failed
	if strings.EqualFold(resp.TransactionStatus, types.TransactionStatus_Failed) {
		return nil, newErrorf(KindTransactionReverted, op, "relay transaction %s finished with status %s", resp.TransactionHash, resp.TransactionStatus)
	}
	status := resp.TransactionStatus
	if status == "" {
		status = types.TransactionStatus_Success
	}

	return &types.SubmissionReceipt{
		TransactionHash: common.HexToHash(resp.TransactionHash),
		BlockNumber:     resp.BlockNumber,
		GasUsed:         resp.GasUsed,
		Status:          status,
		RelayMessage:    resp.Message,
	}, nil
}

// handleAccountChange discards a signature produced by a different account
func (c *Controller) handleAccountChange(previous, current common.Address) {
	c.mu.Lock()
	if c.state == StateSubmitting || c.request == nil || len(c.request.Signature) == 0 || c.request.Signer == current {
		c.mu.Unlock()
		return
	}
	c.dropSignatureLocked()
	c.unlockAndNotify()

	c.logger.Sugar().Infow("Account changed, signature discarded",
		"previous", previous.Hex(),
		"current", current.Hex(),
	)
}

func (c *Controller) dropSignatureLocked() {
	if c.request == nil || c.request.Digest == (common.Hash{}) {
		c.request = nil
		c.state = StateIdle
		return
	}
	c.request = &types.SigningRequest{Digest: c.request.Digest}
	c.state = StateDigestReady
}
