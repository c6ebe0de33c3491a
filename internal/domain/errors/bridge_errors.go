package errors

import (
	"errors"
	"fmt"
)

// Bridge error kinds. Each kind has a sentinel so callers can match with
// errors.Is, and a code carried on the DomainError.
var (
	ErrUserRejected       = errors.New("user rejected the transaction")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrOwnership          = errors.New("caller does not own the asset")
	ErrExecutionReverted  = errors.New("execution reverted")
	ErrTimeout            = errors.New("confirmation timed out")
	ErrTransactionDropped = errors.New("transaction dropped")
	ErrRelayBusy          = errors.New("relay busy")
	ErrRelay              = errors.New("relay error")
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrAlreadyInProgress  = errors.New("transfer already in progress")
	ErrTransport          = errors.New("transport error")
	ErrCancelled          = errors.New("transfer cancelled")
)

const (
	CodeUserRejected       = "USER_REJECTED"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeOwnership          = "OWNERSHIP_ERROR"
	CodeExecutionReverted  = "EXECUTION_REVERTED"
	CodeTimeout            = "TIMEOUT"
	CodeTransactionDropped = "TRANSACTION_DROPPED"
	CodeRelayBusy          = "RELAY_BUSY"
	CodeRelayError         = "RELAY_ERROR"
	CodeUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	CodeAlreadyInProgress  = "ALREADY_IN_PROGRESS"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "VALIDATION_ERROR"
	CodeTransport          = "TRANSPORT_ERROR"
	CodeCancelled          = "CANCELLED"
	CodeUnknown            = "UNKNOWN_ERROR"
)

func newKind(sentinel error, code, message string, cause error) *DomainError {
	de := &DomainError{Err: sentinel, Code: code, Message: message, Cause: cause}
	if cause != nil && message == "" {
		de.Message = fmt.Sprintf("%s: %v", sentinel, cause)
	}
	return de
}

func UserRejectedError(cause error) *DomainError {
	return newKind(ErrUserRejected, CodeUserRejected, "transaction was rejected in the wallet", cause)
}

func InsufficientFundsError(cause error) *DomainError {
	return newKind(ErrInsufficientFunds, CodeInsufficientFunds, "insufficient funds to pay for the lock transaction", cause)
}

func OwnershipError(tokenID uint64, cause error) *DomainError {
	return newKind(ErrOwnership, CodeOwnership, fmt.Sprintf("token %d is not owned by the sender", tokenID), cause)
}

func ExecutionRevertedError(cause error) *DomainError {
	return newKind(ErrExecutionReverted, CodeExecutionReverted, "", cause)
}

func TimeoutError(txHash string, cause error) *DomainError {
	return newKind(ErrTimeout, CodeTimeout, fmt.Sprintf("transaction %s not confirmed in time", txHash), cause).
		WithRetryable(true)
}

func TransactionDroppedError(txHash string) *DomainError {
	return newKind(ErrTransactionDropped, CodeTransactionDropped, fmt.Sprintf("transaction %s is unknown to the node", txHash), nil)
}

func RelayBusyError(cause error) *DomainError {
	return newKind(ErrRelayBusy, CodeRelayBusy, "relay is processing another proof", cause).WithRetryable(true)
}

func RelayError(op string, cause error) *DomainError {
	return newKind(ErrRelay, CodeRelayError, fmt.Sprintf("relay %s failed: %v", op, cause), cause)
}

func UnsupportedNetworkError(network string) *DomainError {
	return newKind(ErrUnsupportedNetwork, CodeUnsupportedNetwork, fmt.Sprintf("network %q is not part of any bridge pair", network), nil)
}

func AlreadyInProgressError(transferID string) *DomainError {
	return newKind(ErrAlreadyInProgress, CodeAlreadyInProgress, fmt.Sprintf("transfer %s is still in progress", transferID), nil)
}

func TransportError(op string, cause error) *DomainError {
	return newKind(ErrTransport, CodeTransport, fmt.Sprintf("%s: %v", op, cause), cause).WithRetryable(true)
}

// CancelledError marks a step abandoned because the caller cancelled. cause
// is normally the context error.
func CancelledError(op string, cause error) *DomainError {
	return newKind(ErrCancelled, CodeCancelled, fmt.Sprintf("%s cancelled", op), cause)
}

// KindOf returns the code of the outermost DomainError in the chain.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	return GetErrorCode(err)
}
