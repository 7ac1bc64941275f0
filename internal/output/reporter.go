package output

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/manifest-network/rootcheck/internal/models"
	"github.com/manifest-network/rootcheck/internal/verifier"
)

// Reporter is the single channel through which verification results reach the operator.
type Reporter interface {
	// FailedTransaction notes a transaction that was included in the block but failed.
	FailedTransaction(txID, reason string)

	// Success reports a block whose commitments all matched.
	Success(summary *verifier.Summary)

	// Failure reports the error that stopped the verification.
	Failure(err error)
}

// TextReporter writes human-readable lines.
type TextReporter struct {
	mu   sync.Mutex
	w    io.Writer
	info *color.Color
	warn *color.Color
	ok   *color.Color
	bad  *color.Color
}

// NewTextReporter returns a reporter writing to w. Escape sequences are only written when colored is set.
func NewTextReporter(w io.Writer, colored bool) *TextReporter {
	r := &TextReporter{
		w:    w,
		info: color.New(color.FgCyan),
		warn: color.New(color.FgYellow),
		ok:   color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{r.info, r.warn, r.ok, r.bad} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// FailedTransaction prints a note for a transaction included with a failure status.
func (r *TextReporter) FailedTransaction(txID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(r.warn, "Found failed transaction: %s with reason: %s\n", txID, reason)
}

// Success prints the summary of a verified block.
func (r *TextReporter) Success(s *verifier.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(r.ok, "Block #%d (%s) validation completed successfully\n", s.Height, s.BlockID)
	r.printf(r.info, "  transactions root: %s (%d transactions, %d script)\n", s.TransactionsRoot, s.Transactions, s.ScriptTransactions)
	r.printf(r.info, "  receipt roots verified: %d, failed transactions: %d, without status: %d\n",
		s.ReceiptRootsChecked, s.FailedTransactions, s.WithoutStatus)
}

// Failure prints err, with both digests when it is a root mismatch.
func (r *TextReporter) Failure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		receiptErr *verifier.ReceiptRootMismatch
		txRootErr  *verifier.TransactionRootMismatch
	)
	switch {
	case errors.As(err, &receiptErr):
		r.printf(r.bad, "Receipt root mismatch for transaction %s [in block %s]\n", receiptErr.TxID, receiptErr.BlockID)
		r.digests(receiptErr.Expected, receiptErr.Actual)
	case errors.As(err, &txRootErr):
		r.printf(r.bad, "Transaction root mismatch in block #%d (%s)\n", txRootErr.Height, txRootErr.BlockID)
		r.digests(txRootErr.Expected, txRootErr.Actual)
	default:
		r.printf(r.bad, "Verification aborted (%s): %v\n", verifier.KindOf(err), err)
	}
}

func (r *TextReporter) digests(expected, actual models.Digest) {
	r.printf(r.info, "  expected: %s\n", expected)
	r.printf(r.info, "  actual:   %s\n", actual)
}

func (r *TextReporter) printf(c *color.Color, format string, args ...any) {
	if _, err := c.Fprintf(r.w, format, args...); err != nil {
		slog.Warn("Failed to write report", "error", err)
	}
}

// Event is one line of JSON output.
type Event struct {
	Event    string            `json:"event"`
	TxID     string            `json:"tx_id,omitempty"`
	BlockID  string            `json:"block_id,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Expected *models.Digest    `json:"expected,omitempty"`
	Actual   *models.Digest    `json:"actual,omitempty"`
	Error    string            `json:"error,omitempty"`
	Summary  *verifier.Summary `json:"summary,omitempty"`
}

// Values of Event.Event.
const (
	EventFailedTransaction = "failed_transaction"
	EventSuccess           = "success"
	EventFailure           = "failure"
)

// JSONReporter writes one JSON object per event.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter returns a reporter writing newline-delimited JSON to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

// FailedTransaction writes a failed_transaction event.
func (r *JSONReporter) FailedTransaction(txID, reason string) {
	r.write(Event{Event: EventFailedTransaction, TxID: txID, Reason: reason})
}

// Success writes a success event carrying the summary.
func (r *JSONReporter) Success(s *verifier.Summary) {
	r.write(Event{Event: EventSuccess, BlockID: s.BlockID, Summary: s})
}

// Failure writes a failure event labelled with the error kind.
func (r *JSONReporter) Failure(err error) {
	e := Event{Event: EventFailure, Kind: verifier.KindOf(err), Error: err.Error()}

	var (
		receiptErr *verifier.ReceiptRootMismatch
		txRootErr  *verifier.TransactionRootMismatch
	)
	switch {
	case errors.As(err, &receiptErr):
		e.TxID, e.BlockID = receiptErr.TxID, receiptErr.BlockID
		e.Expected, e.Actual = &receiptErr.Expected, &receiptErr.Actual
	case errors.As(err, &txRootErr):
		e.BlockID = txRootErr.BlockID
		e.Expected, e.Actual = &txRootErr.Expected, &txRootErr.Actual
	}
	r.write(e)
}

func (r *JSONReporter) write(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(e); err != nil {
		slog.Warn("Failed to write report", "event", e.Event, "error", err)
	}
}
