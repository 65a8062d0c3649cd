package caller

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/docsigner/docsigner-go/pkg/testutil"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	documentSignerAddr = common.HexToAddress("0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c")
	registryAddr       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	signerAddr         = common.HexToAddress("0x1111111111111111111111111111111111111111")
	labAddr            = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// rpcRevertError mimics the error geth returns for a reverted eth_call
type rpcRevertError struct {
	data string
}

func (e *rpcRevertError) Error() string          { return "execution reverted" }
func (e *rpcRevertError) ErrorCode() int         { return 3 }
func (e *rpcRevertError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...))
}

// handlerFor answers eth_call by method name using the contract ABIs
func handlerFor(t *testing.T, responses map[string]func(args []interface{}) ([]interface{}, error)) func(msg ethereum.CallMsg) ([]byte, error) {
	docAbi, err := DocumentSignerMetaData.GetAbi()
	require.NoError(t, err)
	regAbi, err := AccreditationRegistryMetaData.GetAbi()
	require.NoError(t, err)

	return func(msg ethereum.CallMsg) ([]byte, error) {
		contractAbi := docAbi
		if *msg.To == registryAddr {
			contractAbi = regAbi
		}
		method, err := contractAbi.MethodById(msg.Data[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		respond, ok := responses[method.Name]
		if !ok {
			return nil, nil
		}
		results, err := respond(args)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(results...)
	}
}

func newTestCaller(t *testing.T, backend *testutil.FakeBackend) *ContractCaller {
	cc, err := NewContractCaller(backend, documentSignerAddr, registryAddr, zaptest.NewLogger(t))
	require.NoError(t, err)
	return cc
}

func Test_NewContractCaller_Validation(t *testing.T) {
	_, err := NewContractCaller(nil, documentSignerAddr, registryAddr, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewContractCaller(testutil.NewFakeBackend(31337), common.Address{}, registryAddr, zaptest.NewLogger(t))
	require.Error(t, err)
}

func Test_DocumentSignerReads(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	digest := crypto.Keccak256Hash([]byte("doc.pdf"))
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	backend.CallHandler = handlerFor(t, map[string]func([]interface{}) ([]interface{}, error){
		"nonce": func(args []interface{}) ([]interface{}, error) {
			assert.Equal(t, signerAddr, args[0])
			return []interface{}{uint32(3)}, nil
		},
		"getSigners": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{[]DocumentSignerSignerInfo{
				{Signer: signerAddr, Timestamp: big.NewInt(1700000000), Sender: sender},
			}}, nil
		},
		"verifyStoredSignature": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{args[1].(common.Address) == signerAddr}, nil
		},
	})
	cc := newTestCaller(t, backend)
	ctx := context.Background()

	nonce, err := cc.GetNonce(ctx, signerAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), nonce)

	records, err := cc.GetSigners(ctx, digest)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, signerAddr, records[0].Signer)
	assert.Equal(t, sender, records[0].Sender)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), records[0].Timestamp)

	valid, err := cc.VerifyStoredSignature(ctx, digest, signerAddr)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = cc.VerifyStoredSignature(ctx, digest, sender)
	require.NoError(t, err)
	assert.False(t, valid)
}

func Test_RegistryReads(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")

	backend.CallHandler = handlerFor(t, map[string]func([]interface{}) ([]interface{}, error){
		"owner": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{owner}, nil
		},
		"isAuditor": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{args[0].(common.Address) == owner}, nil
		},
		"getLaboratoryInfo": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{"Lab One", true, true}, nil
		},
		"hasValidAccreditation": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{args[1].(string) == "ISO17025"}, nil
		},
		"getAccreditationDetails": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{"ISO17025", big.NewInt(100), big.NewInt(200), true}, nil
		},
		"getAllAccreditationsForLaboratory": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{[]AccreditationRegistryAccreditation{
				{Name: "ISO17025", ValidFrom: big.NewInt(100), ValidUntil: big.NewInt(200)},
				{Name: "ISO9001", ValidFrom: big.NewInt(300), ValidUntil: big.NewInt(400)},
			}}, nil
		},
		"signers": func(args []interface{}) ([]interface{}, error) {
			return []interface{}{signerAddr, "Alice", false}, nil
		},
	})
	cc := newTestCaller(t, backend)
	ctx := context.Background()

	gotOwner, err := cc.GetRegistryOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)

	isAuditor, err := cc.IsAuditor(ctx, owner)
	require.NoError(t, err)
	assert.True(t, isAuditor)

	lab, err := cc.GetLaboratoryInfo(ctx, labAddr)
	require.NoError(t, err)
	assert.Equal(t, "Lab One", lab.Name)
	assert.True(t, lab.IsVerified)
	assert.True(t, lab.Exists)

	hasValid, err := cc.HasValidAccreditation(ctx, labAddr, "ISO17025")
	require.NoError(t, err)
	assert.True(t, hasValid)

	details, err := cc.GetAccreditationDetails(ctx, labAddr, "ISO17025")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(100, 0).UTC(), details.ValidFrom)
	assert.Equal(t, time.Unix(200, 0).UTC(), details.ValidUntil)
	assert.True(t, details.Exists)

	all, err := cc.GetAllAccreditationsForLaboratory(ctx, labAddr)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ISO9001", all[1].Name)

	registered, err := cc.GetRegisteredSigner(ctx, signerAddr)
	require.NoError(t, err)
	assert.True(t, registered.Exists())
	assert.Equal(t, "Alice", registered.Name)
}

func Test_RegistryNotConfigured(t *testing.T) {
	cc, err := NewContractCaller(testutil.NewFakeBackend(31337), documentSignerAddr, common.Address{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = cc.IsAuditor(context.Background(), signerAddr)
	require.ErrorIs(t, err, ErrRegistryNotConfigured)

	_, err = cc.AddAuditor(context.Background(), nil, signerAddr)
	require.ErrorIs(t, err, ErrRegistryNotConfigured)
}

func newTxSigner(t *testing.T, backend *testutil.FakeBackend) *transactionSigner.PrivateKeySigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := transactionSigner.NewPrivateKeySignerFromKey(key, backend, zaptest.NewLogger(t))
	require.NoError(t, err)
	return signer
}

func Test_SignDocument_SendsPackedCall(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	cc := newTestCaller(t, backend)
	txSigner := newTxSigner(t, backend)

	digest := crypto.Keccak256Hash([]byte("doc.pdf"))
	sig := make([]byte, 65)
	sig[64] = 27

	receipt, err := cc.SignDocument(context.Background(), txSigner, digest, signerAddr, sig)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	sent := backend.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, documentSignerAddr, *sent[0].To())

	docAbi, err := DocumentSignerMetaData.GetAbi()
	require.NoError(t, err)
	expected, err := docAbi.Pack("signDocument", digest, signerAddr, sig)
	require.NoError(t, err)
	assert.Equal(t, expected, sent[0].Data())
}

func Test_SignDocument_RevertIsNotSent(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	revertData := encodeRevert(t, "Invalid nonce")
	backend.CallHandler = func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, &rpcRevertError{data: revertData}
	}
	cc := newTestCaller(t, backend)
	txSigner := newTxSigner(t, backend)

	_, err := cc.SignDocument(context.Background(), txSigner, crypto.Keccak256Hash([]byte("doc")), signerAddr, make([]byte, 65))
	require.Error(t, err)
	assert.True(t, IsRevert(err))

	reason, ok := RevertReason(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid nonce", reason)
	assert.Contains(t, err.Error(), "Invalid nonce")
	assert.Empty(t, backend.Sent())
}

func Test_InvalidateSignature_FailedReceipt(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	backend.SetReceiptStatus(types.ReceiptStatusFailed)
	cc := newTestCaller(t, backend)
	txSigner := newTxSigner(t, backend)

	receipt, err := cc.InvalidateSignature(context.Background(), txSigner, crypto.Keccak256Hash([]byte("doc")), signerAddr, make([]byte, 65))
	require.Error(t, err)
	assert.True(t, IsRevert(err))
	assert.ErrorIs(t, err, transactionSigner.ErrTransactionFailed)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func Test_RegistryWrite_UsesRegistryAddress(t *testing.T) {
	backend := testutil.NewFakeBackend(31337)
	cc := newTestCaller(t, backend)
	txSigner := newTxSigner(t, backend)

	_, err := cc.AddModAccreditation(context.Background(), txSigner, labAddr, "ISO17025", big.NewInt(100), big.NewInt(200))
	require.NoError(t, err)

	sent := backend.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, registryAddr, *sent[0].To())
}

func Test_RevertReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		reason   string
		reverted bool
	}{
		{name: "nil", err: nil},
		{name: "unrelated", err: errors.New("connection refused")},
		{name: "message text", err: errors.New("failed to estimate gas: execution reverted: Not an auditor"), reason: "Not an auditor", reverted: true},
		{name: "bare revert", err: errors.New("execution reverted"), reason: "", reverted: true},
		{name: "rpc data", err: &rpcRevertError{data: encodeRevert(t, "Lab exists")}, reason: "Lab exists", reverted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := RevertReason(tt.err)
			assert.Equal(t, tt.reverted, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
