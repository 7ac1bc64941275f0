package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DigestSize is the byte length of every root and identifier digest.
const DigestSize = 32

// Digest is a 32-byte hash value. Equality is byte-exact.
type Digest [DigestSize]byte

// String renders the digest as 0x-prefixed lowercase hex.
func (d Digest) String() string {
	return hexutil.Encode(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDigest decodes a 0x-prefixed hex string of exactly 32 bytes.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hexutil.Decode(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("invalid digest %q: got %d bytes, want %d", s, len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

// Block represents a blockchain block as returned by the node.
// Transaction order is the leaf order of the transactions-root.
type Block struct {
	ID           string
	Header       Header
	Transactions []Transaction
}

// Header carries the commitments claimed by the node for a block.
type Header struct {
	Height           uint64
	TransactionsRoot Digest
}

// Transaction represents a blockchain transaction with its raw canonical payload.
type Transaction struct {
	ID         string
	RawPayload []byte
	Status     TransactionStatus
}

// TransactionStatus is the execution status of a transaction.
// It is one of *SuccessStatus, *FailureStatus, *OtherStatus, or nil when the node has no status.
type TransactionStatus interface {
	isTransactionStatus()
}

// SuccessStatus is the status of an executed transaction.
type SuccessStatus struct {
	Receipts []Receipt
}

// FailureStatus is the status of a transaction that was included but failed during execution.
type FailureStatus struct {
	Reason   string
	Receipts []Receipt
}

// OtherStatus covers every status without receipts (submitted, squeezed out, ...).
type OtherStatus struct {
	TypeName string
}

func (*SuccessStatus) isTransactionStatus() {}
func (*FailureStatus) isTransactionStatus() {}
func (*OtherStatus) isTransactionStatus()   {}

// Receipt is the node's representation of an execution receipt.
// Pointer fields are optional; which ones are set depends on ReceiptType.
// Integer fields hold decimal strings and hex fields hold 0x-prefixed strings, as served by the node.
type Receipt struct {
	ReceiptType string  `json:"receiptType"`
	ID          *string `json:"id,omitempty"`
	Pc          *string `json:"pc,omitempty"`
	Is          *string `json:"is,omitempty"`
	To          *string `json:"to,omitempty"`
	ToAddress   *string `json:"toAddress,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	AssetID     *string `json:"assetId,omitempty"`
	Gas         *string `json:"gas,omitempty"`
	Param1      *string `json:"param1,omitempty"`
	Param2      *string `json:"param2,omitempty"`
	Val         *string `json:"val,omitempty"`
	Ptr         *string `json:"ptr,omitempty"`
	Digest      *string `json:"digest,omitempty"`
	Reason      *string `json:"reason,omitempty"`
	Ra          *string `json:"ra,omitempty"`
	Rb          *string `json:"rb,omitempty"`
	Rc          *string `json:"rc,omitempty"`
	Rd          *string `json:"rd,omitempty"`
	Len         *string `json:"len,omitempty"`
	Result      *string `json:"result,omitempty"`
	GasUsed     *string `json:"gasUsed,omitempty"`
	Data        *string `json:"data,omitempty"`
	Sender      *string `json:"sender,omitempty"`
	Recipient   *string `json:"recipient,omitempty"`
	Nonce       *string `json:"nonce,omitempty"`
	ContractID  *string `json:"contractId,omitempty"`
	SubID       *string `json:"subId,omitempty"`
}
