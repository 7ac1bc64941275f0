package verifier

import (
	"errors"
	"fmt"

	"github.com/manifest-network/rootcheck/internal/models"
)

// ErrVerificationFailed matches every root mismatch through errors.Is.
var ErrVerificationFailed = errors.New("verification failed")

// Error kinds, as returned by KindOf.
const (
	KindOK                      = "ok"
	KindFetchError              = "fetch_error"
	KindDecodeError             = "decode_error"
	KindConversionError         = "conversion_error"
	KindUnknownStatus           = "unknown_status"
	KindReceiptRootMismatch     = "receipt_root_mismatch"
	KindTransactionRootMismatch = "transaction_root_mismatch"
	KindInternal                = "internal_error"
)

// FetchError wraps a failure of the block source.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError reports a transaction payload that is not a canonical transaction encoding.
type DecodeError struct {
	BlockID string
	TxID    string
	Index   int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode transaction %s (index %d) in block %s: %v", e.TxID, e.Index, e.BlockID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConversionError reports a receipt that cannot be converted into its canonical form.
type ConversionError struct {
	BlockID      string
	TxID         string
	Index        int
	ReceiptIndex int
	Err          error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert receipt %d of transaction %s (index %d) in block %s: %v",
		e.ReceiptIndex, e.TxID, e.Index, e.BlockID, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// UnknownStatusError reports a status variant the verifier does not handle.
type UnknownStatusError struct {
	TxID   string
	Status models.TransactionStatus
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("transaction %s has unhandled status type %T", e.TxID, e.Status)
}

// ReceiptRootMismatch reports a Script transaction whose receipts do not hash to its receipts-root.
type ReceiptRootMismatch struct {
	TxID     string
	BlockID  string
	Expected models.Digest
	Actual   models.Digest
}

func (e *ReceiptRootMismatch) Error() string {
	return fmt.Sprintf("receipt root mismatch for transaction %s [in block %s]: expected %s, got %s",
		e.TxID, e.BlockID, e.Expected, e.Actual)
}

func (e *ReceiptRootMismatch) Is(target error) bool {
	return target == ErrVerificationFailed
}

// TransactionRootMismatch reports a block whose transactions do not hash to its transactions-root.
type TransactionRootMismatch struct {
	BlockID  string
	Height   uint64
	Expected models.Digest
	Actual   models.Digest
}

func (e *TransactionRootMismatch) Error() string {
	return fmt.Sprintf("transaction root mismatch in block %s (height %d): expected %s, got %s",
		e.BlockID, e.Height, e.Expected, e.Actual)
}

func (e *TransactionRootMismatch) Is(target error) bool {
	return target == ErrVerificationFailed
}

// KindOf classifies the result of a verification.
func KindOf(err error) string {
	var (
		fetchErr      *FetchError
		decodeErr     *DecodeError
		conversionErr *ConversionError
		statusErr     *UnknownStatusError
		receiptErr    *ReceiptRootMismatch
		txRootErr     *TransactionRootMismatch
	)
	switch {
	case err == nil:
		return KindOK
	case errors.As(err, &receiptErr):
		return KindReceiptRootMismatch
	case errors.As(err, &txRootErr):
		return KindTransactionRootMismatch
	case errors.As(err, &fetchErr):
		return KindFetchError
	case errors.As(err, &decodeErr):
		return KindDecodeError
	case errors.As(err, &conversionErr):
		return KindConversionError
	case errors.As(err, &statusErr):
		return KindUnknownStatus
	default:
		return KindInternal
	}
}
