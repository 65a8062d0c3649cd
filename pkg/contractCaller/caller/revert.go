package caller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const executionReverted = "execution reverted"

// RevertError is returned when a contract call or transaction reverted
type RevertError struct {
	Method string
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Method, executionReverted)
	}
	return fmt.Sprintf("%s: %s: %s", e.Method, executionReverted, e.Reason)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// IsRevert reports whether err is, or wraps, a contract revert
func IsRevert(err error) bool {
	var revertErr *RevertError
	return errors.As(err, &revertErr)
}

// RevertReason extracts the Error(string) reason from err. The JSON-RPC error
// data is preferred; the "execution reverted: ..." message text is the fallback.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var revertErr *RevertError
	if errors.As(err, &revertErr) {
		return revertErr.Reason, true
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(msg, executionReverted)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimPrefix(msg[idx+len(executionReverted):], ":")
	return strings.TrimSpace(reason), true
}

// wrapRevert converts reverts and failed receipts into *RevertError and leaves
// other errors untouched.
func wrapRevert(method string, err error) error {
	if err == nil || IsRevert(err) {
		return err
	}
	if reason, ok := RevertReason(err); ok {
		return &RevertError{Method: method, Reason: reason, Err: err}
	}
	if errors.Is(err, transactionSigner.ErrTransactionFailed) {
		return &RevertError{Method: method, Err: err}
	}
	return err
}
