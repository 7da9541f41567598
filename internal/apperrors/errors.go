// Package apperrors defines the error taxonomy shared by the ledger, services and HTTP layer.
// Callers add context with fmt.Errorf("...: %w", err) and classify with errors.Is.
package apperrors

import (
	"errors"
	"net/http"
)

// Classification errors. Every error returned by the core wraps exactly one of these.
var (
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOwnership indicates that the caller does not own the target portfolio or transaction.
	ErrOwnership = errors.New("caller does not own this resource")

	// ErrInsufficientBalance indicates a ledger decrease larger than the current holding.
	ErrInsufficientBalance = errors.New("insufficient asset balance for this transaction")

	// ErrImmutableRecord indicates an update or delete on an externally sourced transaction.
	ErrImmutableRecord = errors.New("external transactions cannot be modified")

	// ErrUnsupportedTransactionType indicates a transaction type the effect engine cannot map.
	ErrUnsupportedTransactionType = errors.New("unsupported transaction type")

	// ErrMissingDirection indicates a transfer without a direction.
	ErrMissingDirection = errors.New("missing transfer direction")

	// ErrInvalidDirection indicates a transfer direction other than incoming or outgoing.
	ErrInvalidDirection = errors.New("invalid transfer direction")

	// ErrExternalProvider indicates that a wallet provider call failed.
	ErrExternalProvider = errors.New("wallet provider request failed")

	// ErrInconsistentState indicates that stored positions and transactions disagree.
	ErrInconsistentState = errors.New("inconsistent ledger state detected")
)

// Request level errors.
var (
	// ErrInvalidInput indicates a request that failed a business rule outside the ledger itself.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotWalletPortfolio indicates a wallet operation on a portfolio without a wallet address.
	ErrNotWalletPortfolio = errors.New("portfolio is not a wallet portfolio or has no wallet address")

	// ErrPrivatePortfolio indicates a public view request for a private portfolio.
	ErrPrivatePortfolio = errors.New("this portfolio is private")

	// ErrConflict indicates a unique constraint or a concurrent modification that lost the race.
	ErrConflict = errors.New("conflicting modification")
)

// Entity specific not-found errors. All wrap ErrNotFound.
var (
	ErrPortfolioNotFound   = wrap(ErrNotFound, "portfolio not found")
	ErrTransactionNotFound = wrap(ErrNotFound, "transaction not found")
	ErrAssetNotFound       = wrap(ErrNotFound, "asset not found")
)

// InternalMessage is the only message exposed for unclassified failures.
const InternalMessage = "internal server error"

type wrapped struct {
	parent error
	msg    string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.parent }

func wrap(parent error, msg string) error {
	return &wrapped{parent: parent, msg: msg}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInconsistentState):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOwnership), errors.Is(err, ErrPrivatePortfolio):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExternalProvider):
		return http.StatusFailedDependency
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrImmutableRecord),
		errors.Is(err, ErrUnsupportedTransactionType),
		errors.Is(err, ErrMissingDirection),
		errors.Is(err, ErrInvalidDirection),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotWalletPortfolio):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Classification returns the short error label used in API error payloads.
func Classification(err error) string {
	switch {
	case errors.Is(err, ErrInconsistentState):
		return "InconsistentStateError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrOwnership), errors.Is(err, ErrPrivatePortfolio):
		return "OwnershipError"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalanceError"
	case errors.Is(err, ErrImmutableRecord):
		return "ImmutableRecordError"
	case errors.Is(err, ErrUnsupportedTransactionType):
		return "UnsupportedTransactionTypeError"
	case errors.Is(err, ErrMissingDirection):
		return "MissingDirectionError"
	case errors.Is(err, ErrInvalidDirection):
		return "InvalidDirectionError"
	case errors.Is(err, ErrExternalProvider):
		return "ExternalProviderError"
	case errors.Is(err, ErrConflict):
		return "ConflictError"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotWalletPortfolio):
		return "ValidationError"
	default:
		return "InternalError"
	}
}
