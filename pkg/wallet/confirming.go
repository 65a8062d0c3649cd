package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Prompter asks the user to approve an action
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmingWallet asks for approval before every typed-data signature and
// transaction. A declined prompt is ErrUserRejected.
type ConfirmingWallet struct {
	IWallet
	prompter Prompter
}

func NewConfirmingWallet(inner IWallet, prompter Prompter) *ConfirmingWallet {
	return &ConfirmingWallet{IWallet: inner, prompter: prompter}
}

func (w *ConfirmingWallet) confirm(ctx context.Context, prompt string) error {
	ok, err := w.prompter.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserRejected
	}
	return nil
}

func (w *ConfirmingWallet) SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	prompt := fmt.Sprintf("Sign %s for %s (domain %s %s, contract %s)? %s",
		typedData.PrimaryType,
		account.Hex(),
		typedData.Domain.Name,
		typedData.Domain.Version,
		typedData.Domain.VerifyingContract,
		describeMessage(typedData.Message),
	)
	if err := w.confirm(ctx, prompt); err != nil {
		return nil, err
	}
	return w.IWallet.SignTypedData(ctx, account, typedData)
}

func (w *ConfirmingWallet) TransactionSigner(ctx context.Context, account common.Address) (transactionSigner.ITransactionSigner, error) {
	inner, err := w.IWallet.TransactionSigner(ctx, account)
	if err != nil {
		return nil, err
	}
	return &confirmingTransactionSigner{ITransactionSigner: inner, wallet: w}, nil
}

func describeMessage(message apitypes.TypedDataMessage) string {
	var parts []string
	for _, key := range []string{"contentHash", "nonce"} {
		if v, ok := message[key]; ok {
			if b, isBig := v.(*big.Int); isBig {
				v = b.String()
			}
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(parts, " ")
}

type confirmingTransactionSigner struct {
	transactionSigner.ITransactionSigner
	wallet *ConfirmingWallet
}

func (s *confirmingTransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	prompt := fmt.Sprintf("Send transaction from %s to %s (%d bytes of calldata)?",
		s.GetFromAddress().Hex(), tx.To().Hex(), len(tx.Data()))
	if err := s.wallet.confirm(ctx, prompt); err != nil {
		return nil, err
	}
	return s.ITransactionSigner.SignAndSendTransaction(ctx, tx)
}

// TerminalPrompter reads y/N answers line by line
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s [y/N]: ", prompt); err != nil {
		return false, err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
