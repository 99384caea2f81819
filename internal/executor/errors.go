package executor

import (
	"errors"
	"fmt"

	"github.com/dmagro/novax/internal/receipt"
)

var (
	// ErrTimeout is returned when a submitted transaction does not reach a
	// final status within the polling timeout.
	ErrTimeout = errors.New("executor: timeout waiting for transaction")

	// ErrTransactionFailed is matched by *TransactionFailedError.
	ErrTransactionFailed = errors.New("executor: transaction failed")
)

// TransactionFailedError is a transaction that was processed without
// success. The sender nonce was consumed.
type TransactionFailedError struct {
	Hash    string
	Status  string
	Message string
	Receipt *receipt.Receipt
}

func (e *TransactionFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("executor: transaction %s failed with status %s", e.Hash, e.Status)
	}
	return fmt.Sprintf("executor: transaction %s failed with status %s: %s", e.Hash, e.Status, e.Message)
}

// Is matches ErrTransactionFailed.
func (e *TransactionFailedError) Is(target error) bool { return target == ErrTransactionFailed }

func newTransactionFailed(hash string, r *receipt.Receipt) *TransactionFailedError {
	return &TransactionFailedError{
		Hash:    hash,
		Status:  r.Status,
		Message: receipt.ErrorMessage(r),
		Receipt: r,
	}
}

// PostSubmissionError is an error raised after a transaction was accepted
// by the network. The transaction may have changed state even though the
// call reports an error.
type PostSubmissionError struct {
	TxHash string
	Err    error
}

func (e *PostSubmissionError) Error() string {
	return fmt.Sprintf("executor: transaction %s submitted: %v", e.TxHash, e.Err)
}

func (e *PostSubmissionError) Unwrap() error { return e.Err }
