// Package codec implements the parts of the Fuel canonical encoding needed to recompute block
// commitments: the transaction envelope (variant tag and Script header) and execution receipts.
//
// The canonical encoding is big-endian and every field occupies a multiple of 8 bytes.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/manifest-network/rootcheck/internal/models"
)

const wordSize = 8

// ErrMalformedTransaction is returned for payloads that are not a canonical transaction encoding.
var ErrMalformedTransaction = errors.New("malformed transaction")

// Kind is the transaction variant discriminant.
type Kind uint64

const (
	KindScript Kind = iota
	KindCreate
	KindMint
	KindUpgrade
	KindUpload
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "Script"
	case KindCreate:
		return "Create"
	case KindMint:
		return "Mint"
	case KindUpgrade:
		return "Upgrade"
	case KindUpload:
		return "Upload"
	case KindBlob:
		return "Blob"
	default:
		return fmt.Sprintf("Kind(%d)", uint64(k))
	}
}

// scriptHeaderSize is the static part of a Script transaction, including the variant tag.
const scriptHeaderSize = 12 * wordSize

// ScriptHeader is the fixed-size part of a Script transaction body.
type ScriptHeader struct {
	GasLimit         uint64
	ReceiptsRoot     models.Digest
	ScriptLength     uint64
	ScriptDataLength uint64
	PolicyTypes      uint64
	InputsCount      uint64
	OutputsCount     uint64
	WitnessesCount   uint64
}

// Transaction is a decoded transaction. Only the envelope is interpreted; the rest of the body is
// carried as canonical bytes.
type Transaction struct {
	kind   Kind
	script *ScriptHeader
	raw    []byte
}

// Kind returns the transaction variant.
func (tx *Transaction) Kind() Kind {
	return tx.kind
}

// Script returns the Script header, or nil for other kinds.
func (tx *Transaction) Script() *ScriptHeader {
	return tx.script
}

// ReceiptsRoot returns the receipts-root embedded in a Script transaction.
// The second result is false for kinds that carry no receipts-root.
func (tx *Transaction) ReceiptsRoot() (models.Digest, bool) {
	if tx.script == nil {
		return models.Digest{}, false
	}
	return tx.script.ReceiptsRoot, true
}

// Encode returns the canonical encoding of the transaction.
func (tx *Transaction) Encode() []byte {
	out := make([]byte, len(tx.raw))
	copy(out, tx.raw)
	return out
}

// DecodeTransaction decodes a canonical transaction payload.
func DecodeTransaction(b []byte) (*Transaction, error) {
	if len(b) < wordSize {
		return nil, fmt.Errorf("%w: payload of %d bytes is shorter than the variant tag", ErrMalformedTransaction, len(b))
	}
	if len(b)%wordSize != 0 {
		return nil, fmt.Errorf("%w: payload length %d is not %d-byte aligned", ErrMalformedTransaction, len(b), wordSize)
	}

	kind := Kind(binary.BigEndian.Uint64(b))
	if kind > KindBlob {
		return nil, fmt.Errorf("%w: unknown variant tag %d", ErrMalformedTransaction, uint64(kind))
	}

	tx := &Transaction{kind: kind, raw: b}
	if kind == KindScript {
		header, err := decodeScriptHeader(b)
		if err != nil {
			return nil, err
		}
		tx.script = header
		return tx, nil
	}
	if err := checkSections(kind, b); err != nil {
		return nil, err
	}
	return tx, nil
}

// section is a counted part of a transaction body.
type section struct {
	name     string
	offset   int    // payload offset of the count word
	itemSize uint64 // lower bound on the encoded size of one item
	bitmask  bool   // the count word is a policy bitmask
}

// bodyLayout is the fixed header of a transaction kind and the sections it declares.
type bodyLayout struct {
	headerSize int
	sections   []section
}

// bodyLayouts covers the kinds other than Script whose bodies declare counted sections.
// Mint and Upgrade bodies are carried without checks.
var bodyLayouts = map[Kind]bodyLayout{
	// tag, bytecode witness index, salt, then the counts
	KindCreate: {headerSize: 88, sections: []section{
		{name: "storage slots", offset: 48, itemSize: 64},
		{name: "policies", offset: 56, itemSize: wordSize, bitmask: true},
		{name: "inputs", offset: 64, itemSize: wordSize},
		{name: "outputs", offset: 72, itemSize: wordSize},
		{name: "witnesses", offset: 80, itemSize: wordSize},
	}},
	// tag, bytecode root, witness index, subsection index, subsections number, then the counts
	KindUpload: {headerSize: 104, sections: []section{
		{name: "proof set entries", offset: 64, itemSize: models.DigestSize},
		{name: "policies", offset: 72, itemSize: wordSize, bitmask: true},
		{name: "inputs", offset: 80, itemSize: wordSize},
		{name: "outputs", offset: 88, itemSize: wordSize},
		{name: "witnesses", offset: 96, itemSize: wordSize},
	}},
	// tag, blob id, witness index, then the counts
	KindBlob: {headerSize: 80, sections: []section{
		{name: "policies", offset: 48, itemSize: wordSize, bitmask: true},
		{name: "inputs", offset: 56, itemSize: wordSize},
		{name: "outputs", offset: 64, itemSize: wordSize},
		{name: "witnesses", offset: 72, itemSize: wordSize},
	}},
}

// checkSections verifies that the sections declared by a body header can fit in the payload.
func checkSections(kind Kind, b []byte) error {
	layout, ok := bodyLayouts[kind]
	if !ok {
		return nil
	}
	if len(b) < layout.headerSize {
		return fmt.Errorf("%w: %s payload of %d bytes is shorter than its %d-byte header",
			ErrMalformedTransaction, kind, len(b), layout.headerSize)
	}

	remaining := uint64(len(b) - layout.headerSize)
	var need uint64
	for _, s := range layout.sections {
		count := binary.BigEndian.Uint64(b[s.offset:])
		if s.bitmask {
			count = uint64(bits.OnesCount64(count))
		}
		hi, size := bits.Mul64(count, s.itemSize)
		next, carry := bits.Add64(need, size, 0)
		if hi != 0 || carry != 0 || next > remaining {
			return fmt.Errorf("%w: %s declares %d %s that do not fit in %d body bytes",
				ErrMalformedTransaction, kind, count, s.name, remaining)
		}
		need = next
	}
	return nil
}

func decodeScriptHeader(b []byte) (*ScriptHeader, error) {
	if len(b) < scriptHeaderSize {
		return nil, fmt.Errorf("%w: script payload of %d bytes is shorter than its %d-byte header", ErrMalformedTransaction, len(b), scriptHeaderSize)
	}
	r := reader{buf: b[wordSize:scriptHeaderSize]}
	h := &ScriptHeader{}
	h.GasLimit = r.word()
	h.ReceiptsRoot = r.digest()
	h.ScriptLength = r.word()
	h.ScriptDataLength = r.word()
	h.PolicyTypes = r.word()
	h.InputsCount = r.word()
	h.OutputsCount = r.word()
	h.WitnessesCount = r.word()

	remaining := uint64(len(b) - scriptHeaderSize)
	need, ok := addAll(
		padded(h.ScriptLength),
		padded(h.ScriptDataLength),
		uint64(bits.OnesCount64(h.PolicyTypes))*wordSize,
	)
	if !ok || need > remaining {
		return nil, fmt.Errorf("%w: declared script (%d) and script data (%d) do not fit in %d body bytes",
			ErrMalformedTransaction, h.ScriptLength, h.ScriptDataLength, remaining)
	}
	// Every input, output and witness takes at least one word.
	items, ok := addAll(h.InputsCount, h.OutputsCount, h.WitnessesCount)
	if !ok || items > (remaining-need)/wordSize {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs and %d witnesses do not fit in %d bytes",
			ErrMalformedTransaction, h.InputsCount, h.OutputsCount, h.WitnessesCount, remaining-need)
	}
	return h, nil
}

// padded rounds n up to the next multiple of the word size, saturating on overflow.
func padded(n uint64) uint64 {
	if n > ^uint64(0)-(wordSize-1) {
		return ^uint64(0)
	}
	return (n + wordSize - 1) / wordSize * wordSize
}

func addAll(values ...uint64) (uint64, bool) {
	var sum uint64
	for _, v := range values {
		next, carry := bits.Add64(sum, v, 0)
		if carry != 0 {
			return 0, false
		}
		sum = next
	}
	return sum, true
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) word() uint64 {
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += wordSize
	return v
}

func (r *reader) digest() models.Digest {
	var d models.Digest
	copy(d[:], r.buf[r.off:r.off+models.DigestSize])
	r.off += models.DigestSize
	return d
}
