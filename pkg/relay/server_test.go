package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docsigner/docsigner-go/pkg/contractCaller"
	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/persistence/memory"
	"github.com/docsigner/docsigner-go/pkg/testutil"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var documentSignerAddress = common.HexToAddress("0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c")

type relayHarness struct {
	server   *Server
	contract *contractCaller.FakeContractCaller
	store    *memory.MemoryPersistence
	signer   *transactionSigner.PrivateKeySigner
}

func newRelayHarness(t *testing.T, contract contractCaller.IDocumentSignerCaller, mutate func(*ServerConfig)) *relayHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := transactionSigner.NewPrivateKeySignerFromKey(key, testutil.NewFakeBackend(31337), logger, transactionSigner.WithFixedGasLimit(500000))
	require.NoError(t, err)

	fake := contractCaller.NewFakeContractCaller(documentSignerAddress)
	if contract == nil {
		contract = fake
	}
	store := memory.NewMemoryPersistence(logger)

	cfg := &ServerConfig{
		Contract: contract,
		Signer:   signer,
		Store:    store,
		Logger:   logger,
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
	}
	if mutate != nil {
		mutate(cfg)
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)

	return &relayHarness{server: server, contract: fake, store: store, signer: signer}
}

func validBody(t *testing.T) (*types.RelayRequest, types.DocumentDigest, common.Address) {
	t.Helper()
	d := digest.ComputeDigest([]byte("doc.pdf"))
	signer := common.HexToAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	return &types.RelayRequest{
		DocumentHash:  d.Hex(),
		SignerAddress: signer.Hex(),
		Signature:     hexutil.Encode(bytes.Repeat([]byte{0x11}, 65)),
	}, d, signer
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body types.RelayErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func Test_NewServer_Validation(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)

	_, err = NewServer(&ServerConfig{})
	require.Error(t, err)

	_, err = NewServer(&ServerConfig{Contract: contractCaller.NewFakeContractCaller(documentSignerAddress)})
	require.Error(t, err)
}

func Test_GetAddress(t *testing.T) {
	h := newRelayHarness(t, nil, nil)

	rec := doRequest(t, h.server.GetHandler(), http.MethodGet, PathGetAddress, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body types.RelayAddressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, h.signer.GetFromAddress().Hex(), body.EthereumAddress)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = doRequest(t, h.server.GetHandler(), http.MethodPost, PathGetAddress, nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func Test_SignDocument_Success(t *testing.T) {
	h := newRelayHarness(t, nil, nil)
	body, d, signer := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, map[string]string{HeaderRequestID: "req-42"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	var resp types.RelayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.TransactionStatus_Success, resp.TransactionStatus)
	assert.Equal(t, messageSuccess, resp.Message)
	assert.NotEmpty(t, resp.TransactionHash)
	assert.NotZero(t, resp.BlockNumber)
	assert.Equal(t, "req-42", resp.RequestID)

	calls := h.contract.DocumentCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, types.Operation_SignDocument, calls[0].Operation)
	assert.Equal(t, d, calls[0].Digest)
	assert.Equal(t, signer, calls[0].Signer)
	assert.Equal(t, h.signer.GetFromAddress(), calls[0].From)
	assert.Len(t, calls[0].Signature, 65)

	receipts, err := h.store.ListReceiptsForDocument(d.Hex())
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "req-42", receipts[0].RequestID)
	assert.Equal(t, resp.TransactionHash, receipts[0].TransactionHash)
	assert.Equal(t, types.TransactionStatus_Success, receipts[0].Status)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), receipts[0].CreatedAt)
}

func Test_InvalidateSignature_Route(t *testing.T) {
	h := newRelayHarness(t, nil, nil)
	body, d, signer := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h.server.GetHandler(), http.MethodPost, PathInvalidateSignature, body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	calls := h.contract.DocumentCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, types.Operation_InvalidateSignature, calls[1].Operation)
	assert.False(t, h.contract.Valid[d][signer])
}

func Test_DocumentCall_Validation(t *testing.T) {
	valid, _, signer := validBody(t)

	tests := []struct {
		name    string
		body    interface{}
		wantErr string
	}{
		{name: "empty body", body: "", wantErr: "Empty or invalid JSON payload"},
		{name: "invalid json", body: "{", wantErr: "Empty or invalid JSON payload"},
		{
			name:    "missing signature",
			body:    &types.RelayRequest{DocumentHash: valid.DocumentHash, SignerAddress: valid.SignerAddress},
			wantErr: "are required",
		},
		{
			name:    "address not checksummed",
			body:    &types.RelayRequest{DocumentHash: valid.DocumentHash, SignerAddress: strings.ToLower(signer.Hex()), Signature: valid.Signature},
			wantErr: "Invalid address",
		},
		{
			name:    "short document hash",
			body:    &types.RelayRequest{DocumentHash: "0x1234", SignerAddress: valid.SignerAddress, Signature: valid.Signature},
			wantErr: "Invalid document hash",
		},
		{
			name:    "hash without prefix",
			body:    &types.RelayRequest{DocumentHash: strings.TrimPrefix(valid.DocumentHash, "0x") + "00", SignerAddress: valid.SignerAddress, Signature: valid.Signature},
			wantErr: "Invalid document hash",
		},
		{
			name:    "signature without prefix",
			body:    &types.RelayRequest{DocumentHash: valid.DocumentHash, SignerAddress: valid.SignerAddress, Signature: strings.TrimPrefix(valid.Signature, "0x")},
			wantErr: "Invalid signature",
		},
		{
			name:    "signature not hex",
			body:    &types.RelayRequest{DocumentHash: valid.DocumentHash, SignerAddress: valid.SignerAddress, Signature: "0xzz"},
			wantErr: "Invalid signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRelayHarness(t, nil, nil)
			rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.wantErr)
			assert.Empty(t, h.contract.DocumentCalls())
		})
	}
}

func Test_SignDocument_SimulatedRevert(t *testing.T) {
	fake := contractCaller.NewFakeContractCaller(documentSignerAddress)
	domain := eip712.NewDocumentSignerDomain(big.NewInt(31337), documentSignerAddress)
	fake.Domain = &domain

	h := newRelayHarness(t, fake, nil)
	body, d, _ := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Invalid signature")

	receipts, err := h.store.ListReceiptsForDocument(d.Hex())
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, types.TransactionStatus_Failed, receipts[0].Status)
	assert.Contains(t, receipts[0].Error, "Invalid signature")
}

// minedFailure returns a mined receipt with status 0
type minedFailure struct {
	*contractCaller.FakeContractCaller
	err error
}

func (m *minedFailure) SignDocument(ctx context.Context, txSigner transactionSigner.ITransactionSigner, d types.DocumentDigest, signer common.Address, signature []byte) (*ethereumTypes.Receipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	receipt := &ethereumTypes.Receipt{
		Status:      ethereumTypes.ReceiptStatusFailed,
		TxHash:      common.HexToHash("0xfeed"),
		BlockNumber: big.NewInt(99),
		GasUsed:     30000,
	}
	return receipt, &caller.RevertError{Method: "signDocument", Err: fmt.Errorf("tx 0xfeed: %w", transactionSigner.ErrTransactionFailed)}
}

func Test_SignDocument_MinedButReverted(t *testing.T) {
	contract := &minedFailure{FakeContractCaller: contractCaller.NewFakeContractCaller(documentSignerAddress)}
	h := newRelayHarness(t, contract, nil)
	body, _, _ := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp types.RelayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.TransactionStatus_Failed, resp.TransactionStatus)
	assert.Equal(t, messageReverted, resp.Message)
	assert.Equal(t, uint64(99), resp.BlockNumber)
	assert.Equal(t, uint64(30000), resp.GasUsed)
}

func Test_SignDocument_ProviderFailure(t *testing.T) {
	contract := &minedFailure{
		FakeContractCaller: contractCaller.NewFakeContractCaller(documentSignerAddress),
		err:                fmt.Errorf("dial tcp: connection refused"),
	}
	h := newRelayHarness(t, contract, nil)
	body, _, _ := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec), "connection refused")
}

func Test_Receipts(t *testing.T) {
	h := newRelayHarness(t, nil, nil)
	body, d, _ := validBody(t)

	rec := doRequest(t, h.server.GetHandler(), http.MethodPost, PathSignDocument, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h.server.GetHandler(), http.MethodGet, PathReceipts+"?document_hash="+d.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipts []*types.RelayReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipts))
	require.Len(t, receipts, 1)
	assert.Equal(t, types.Operation_SignDocument, receipts[0].Operation)

	rec = doRequest(t, h.server.GetHandler(), http.MethodGet, PathReceipts+"?document_hash=0x12", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Health(t *testing.T) {
	h := newRelayHarness(t, nil, nil)

	rec := doRequest(t, h.server.GetHandler(), http.MethodGet, PathHealth, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, h.store.Close())
	rec = doRequest(t, h.server.GetHandler(), http.MethodGet, PathHealth, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func Test_CORSPreflight(t *testing.T) {
	h := newRelayHarness(t, nil, func(cfg *ServerConfig) {
		cfg.Verifier = rejectAll{}
	})

	rec := doRequest(t, h.server.GetHandler(), http.MethodOptions, PathSignDocument, nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

type rejectAll struct{}

func (rejectAll) Verify(ctx context.Context, token string) (string, error) {
	return "", fmt.Errorf("rejected")
}

func Test_RateLimit(t *testing.T) {
	h := newRelayHarness(t, nil, func(cfg *ServerConfig) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h.server.GetHandler(), http.MethodGet, PathGetAddress, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(t, h.server.GetHandler(), http.MethodGet, PathGetAddress, nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decodeError(t, rec))

	// health checks are never limited
	rec = doRequest(t, h.server.GetHandler(), http.MethodGet, PathHealth, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func newTestKeySet(t *testing.T) (jwk.Set, jwk.Key) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	publicKey, err := jwk.Import(&privateKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, publicKey.Set(jwk.KeyIDKey, "relay-test"))
	require.NoError(t, publicKey.Set(jwk.AlgorithmKey, jwa.RS256()))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(publicKey))

	signingKey, err := jwk.Import(privateKey)
	require.NoError(t, err)
	require.NoError(t, signingKey.Set(jwk.KeyIDKey, "relay-test"))
	require.NoError(t, signingKey.Set(jwk.AlgorithmKey, jwa.RS256()))
	return set, signingKey
}

func signToken(t *testing.T, key jwk.Key, audience string, expires time.Time) string {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set(jwt.SubjectKey, "lab-frontend"))
	require.NoError(t, token.Set(jwt.AudienceKey, []string{audience}))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now().Add(-time.Minute)))
	require.NoError(t, token.Set(jwt.ExpirationKey, expires))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), key))
	require.NoError(t, err)
	return string(signed)
}

func Test_Auth(t *testing.T) {
	set, signingKey := newTestKeySet(t)
	verifier, err := NewJWTVerifier(set, "docsigner-relay")
	require.NoError(t, err)

	h := newRelayHarness(t, nil, func(cfg *ServerConfig) {
		cfg.Verifier = verifier
	})
	handler := h.server.GetHandler()

	rec := doRequest(t, handler, http.MethodGet, PathGetAddress, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing bearer token", decodeError(t, rec))

	rec = doRequest(t, handler, http.MethodGet, PathGetAddress, nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongAudience := signToken(t, signingKey, "someone-else", time.Now().Add(time.Hour))
	rec = doRequest(t, handler, http.MethodGet, PathGetAddress, nil, map[string]string{"Authorization": "Bearer " + wrongAudience})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := signToken(t, signingKey, "docsigner-relay", time.Now().Add(-time.Hour))
	rec = doRequest(t, handler, http.MethodGet, PathGetAddress, nil, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	valid := signToken(t, signingKey, "docsigner-relay", time.Now().Add(time.Hour))
	rec = doRequest(t, handler, http.MethodGet, PathGetAddress, nil, map[string]string{"Authorization": "Bearer " + valid})
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays open for load balancers
	rec = doRequest(t, handler, http.MethodGet, PathHealth, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	subject, err := verifier.Verify(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, "lab-frontend", subject)
}

func Test_NewJWTVerifier_Validation(t *testing.T) {
	_, err := NewJWTVerifier(nil, "aud")
	require.Error(t, err)
	_, err = NewJWTVerifier(jwk.NewSet(), "")
	require.Error(t, err)
}

func Test_StartStop(t *testing.T) {
	h := newRelayHarness(t, nil, func(cfg *ServerConfig) {
		cfg.Address = "127.0.0.1:0"
	})
	require.NoError(t, h.server.Start())

	client, err := NewClient(&ClientConfig{BaseURL: "http://" + h.server.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, client.Health(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.server.Stop(ctx))
}
