// Package verifier recomputes the commitments of a Fuel block and compares them with the values
// claimed by the node: the transactions-root of the header and the receipts-root of every Script
// transaction.
package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/manifest-network/rootcheck/internal/codec"
	"github.com/manifest-network/rootcheck/internal/merkle"
	"github.com/manifest-network/rootcheck/internal/metrics"
	"github.com/manifest-network/rootcheck/internal/models"
)

// BlockFetcher is the block source of a verification.
type BlockFetcher interface {
	FetchBlock(ctx context.Context, height uint64) (*models.Block, error)
	LatestHeight(ctx context.Context) (uint64, error)
}

// Reporter receives the notes emitted while a block is verified.
type Reporter interface {
	FailedTransaction(txID, reason string)
}

// Progress is advanced once per verified transaction.
type Progress interface {
	Add(num int) error
}

// Summary describes a block whose commitments all matched.
type Summary struct {
	BlockID             string        `json:"block_id"`
	Height              uint64        `json:"height"`
	TransactionsRoot    models.Digest `json:"transactions_root"`
	Transactions        int           `json:"transactions"`
	ScriptTransactions  int           `json:"script_transactions"`
	ReceiptRootsChecked int           `json:"receipt_roots_checked"`
	FailedTransactions  int           `json:"failed_transactions"`
	WithoutStatus       int           `json:"without_status"`
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithConcurrency sets how many transactions are decoded and hashed in parallel.
// Values below 2 keep verification sequential.
func WithConcurrency(n uint) Option {
	return func(v *Verifier) {
		v.concurrency = n
	}
}

// WithReporter sets the receiver of failed-transaction notes.
func WithReporter(r Reporter) Option {
	return func(v *Verifier) {
		v.reporter = r
	}
}

// WithProgress sets a progress indicator advanced once per transaction.
func WithProgress(p Progress) Option {
	return func(v *Verifier) {
		v.progress = p
	}
}

// Verifier checks blocks served by a BlockFetcher.
type Verifier struct {
	fetcher     BlockFetcher
	reporter    Reporter
	progress    Progress
	concurrency uint
}

// New returns a Verifier reading blocks from fetcher. Without options it verifies sequentially
// and reports nothing.
func New(fetcher BlockFetcher, opts ...Option) *Verifier {
	v := &Verifier{fetcher: fetcher, concurrency: 1}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyHeight fetches the block at height and verifies it.
func (v *Verifier) VerifyHeight(ctx context.Context, height uint64) (*Summary, error) {
	block, err := v.fetcher.FetchBlock(ctx, height)
	if err != nil {
		err = &FetchError{Op: fmt.Sprintf("fetch block %d", height), Err: err}
		metrics.Verifications.WithLabelValues(KindOf(err)).Inc()
		return nil, err
	}
	return v.Verify(block)
}

// VerifyLatest verifies the most recent block known to the node.
func (v *Verifier) VerifyLatest(ctx context.Context) (*Summary, error) {
	height, err := v.fetcher.LatestHeight(ctx)
	if err != nil {
		err = &FetchError{Op: "fetch latest block height", Err: err}
		metrics.Verifications.WithLabelValues(KindOf(err)).Inc()
		return nil, err
	}
	slog.Debug("Resolved latest block", "height", height)
	return v.VerifyHeight(ctx, height)
}

// Verify checks the commitments of block. Transactions are visited in block order and the first
// failure is returned; Failure-status transactions are reported and still verified.
func (v *Verifier) Verify(block *models.Block) (*Summary, error) {
	summary, err := v.verify(block)
	metrics.Verifications.WithLabelValues(KindOf(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.VerifiedHeightGauge.Set(float64(block.Header.Height))
	return summary, nil
}

func (v *Verifier) verify(block *models.Block) (*Summary, error) {
	slog.Info("Verifying block", "height", block.Header.Height, "id", block.ID, "transactions", len(block.Transactions))

	var checked []*txCheck
	if v.concurrency > 1 && len(block.Transactions) > 1 {
		var err error
		if checked, err = v.checkConcurrently(block); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		BlockID:      block.ID,
		Height:       block.Header.Height,
		Transactions: len(block.Transactions),
	}
	txRoot := merkle.New()

	for i := range block.Transactions {
		var c *txCheck
		if checked != nil {
			c = checked[i]
		} else {
			c = checkTransaction(block, i)
		}
		if err := v.apply(block, c, txRoot, summary); err != nil {
			return nil, err
		}
		if v.progress != nil {
			if err := v.progress.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	actual := txRoot.Root()
	if actual != block.Header.TransactionsRoot {
		return nil, &TransactionRootMismatch{
			BlockID:  block.ID,
			Height:   block.Header.Height,
			Expected: block.Header.TransactionsRoot,
			Actual:   actual,
		}
	}
	summary.TransactionsRoot = actual
	slog.Info("Block verified", "height", block.Header.Height, "transactions_root", actual)
	return summary, nil
}

// checkConcurrently runs checkTransaction for every transaction of block. Results keep block order.
func (v *Verifier) checkConcurrently(block *models.Block) ([]*txCheck, error) {
	checked := make([]*txCheck, len(block.Transactions))
	var eg errgroup.Group
	sem := make(chan struct{}, v.concurrency)

	for i := range block.Transactions {
		i := i
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			checked[i] = checkTransaction(block, i)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check transactions of block %s: %w", block.ID, err)
	}
	return checked, nil
}

// txCheck is the outcome of the order-independent work on one transaction.
type txCheck struct {
	tx        *models.Transaction
	decoded   *codec.Transaction
	decodeErr error

	noStatus  bool
	failed    bool
	reason    string
	statusErr error

	// Set for Script transactions that carry receipts.
	receiptsChecked bool
	receiptsRoot    models.Digest
	conversionErr   error
}

func checkTransaction(block *models.Block, index int) *txCheck {
	tx := &block.Transactions[index]
	c := &txCheck{tx: tx}

	decoded, err := codec.DecodeTransaction(tx.RawPayload)
	if err != nil {
		c.decodeErr = &DecodeError{BlockID: block.ID, TxID: tx.ID, Index: index, Err: err}
		return c
	}
	c.decoded = decoded

	var receipts []models.Receipt
	hasReceipts := false
	switch status := tx.Status.(type) {
	case nil:
		c.noStatus = true
	case *models.SuccessStatus:
		if status == nil {
			c.noStatus = true
			break
		}
		receipts, hasReceipts = status.Receipts, true
	case *models.FailureStatus:
		if status == nil {
			c.noStatus = true
			break
		}
		receipts, hasReceipts = status.Receipts, true
		c.failed, c.reason = true, status.Reason
	case *models.OtherStatus:
	default:
		c.statusErr = &UnknownStatusError{TxID: tx.ID, Status: tx.Status}
		return c
	}

	if decoded.Kind() != codec.KindScript || !hasReceipts {
		return c
	}

	c.receiptsChecked = true
	acc := merkle.New()
	for j := range receipts {
		receipt, err := codec.DecodeReceipt(receipts[j])
		if err != nil {
			c.conversionErr = &ConversionError{BlockID: block.ID, TxID: tx.ID, Index: index, ReceiptIndex: j, Err: err}
			return c
		}
		acc.Push(receipt.Encode())
	}
	c.receiptsRoot = acc.Root()
	return c
}

// apply folds one checked transaction into the block verification, in block order.
func (v *Verifier) apply(block *models.Block, c *txCheck, txRoot *merkle.Accumulator, summary *Summary) error {
	if c.decodeErr != nil {
		return c.decodeErr
	}
	if c.statusErr != nil {
		return c.statusErr
	}

	if c.noStatus {
		summary.WithoutStatus++
		slog.Debug("Transaction has no status", "tx", c.tx.ID)
	}
	if c.failed {
		summary.FailedTransactions++
		metrics.FailedTransactionsSeen.Inc()
		slog.Debug("Found failed transaction", "tx", c.tx.ID, "reason", c.reason)
		if v.reporter != nil {
			v.reporter.FailedTransaction(c.tx.ID, c.reason)
		}
	}

	txRoot.Push(c.decoded.Encode())
	metrics.TransactionsVerified.Inc()
	if c.decoded.Kind() == codec.KindScript {
		summary.ScriptTransactions++
	}

	if !c.receiptsChecked {
		return nil
	}
	if c.conversionErr != nil {
		return c.conversionErr
	}
	expected, _ := c.decoded.ReceiptsRoot()
	if c.receiptsRoot != expected {
		return &ReceiptRootMismatch{
			TxID:     c.tx.ID,
			BlockID:  block.ID,
			Expected: expected,
			Actual:   c.receiptsRoot,
		}
	}
	summary.ReceiptRootsChecked++
	metrics.ReceiptRootsVerified.Inc()
	slog.Debug("Receipt root verified", "tx", c.tx.ID, "receipts_root", expected)
	return nil
}
