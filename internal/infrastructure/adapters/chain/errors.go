package chain

import (
	"strings"

	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
)

// classifyLockError maps wallet and node errors onto the lock failure kinds.
// Order matters: an ownership revert also contains "execution reverted".
func classifyLockError(tokenID uint64, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "action_rejected"),
		strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"):
		return domainerrors.UserRejectedError(err)
	case strings.Contains(msg, "insufficient funds"):
		return domainerrors.InsufficientFundsError(err)
	case strings.Contains(msg, "not owner"),
		strings.Contains(msg, "not the owner"),
		strings.Contains(msg, "caller is not token owner"):
		return domainerrors.OwnershipError(tokenID, err)
	case strings.Contains(msg, "execution reverted"):
		return domainerrors.ExecutionRevertedError(err)
	default:
		return domainerrors.TransportError("lock", err)
	}
}

// isMissingToken reports a metadata read that failed because the token
// does not exist rather than because the node is unreachable.
func isMissingToken(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "missing revert data") ||
		strings.Contains(msg, "nonexistent token") ||
		strings.Contains(msg, "attempting to unmarshal an empty string") ||
		strings.Contains(msg, "attempting to unmarshall an empty string")
}
