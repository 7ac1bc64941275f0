package codec

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/manifest-network/rootcheck/internal/models"
)

// ScriptBuilder assembles canonical Script transaction payloads.
// Inputs and outputs are not modelled; only witnesses can be attached.
type ScriptBuilder struct {
	GasLimit     uint64
	ReceiptsRoot models.Digest
	Script       []byte
	ScriptData   []byte
	PolicyTypes  uint64
	PolicyValues []uint64
	Witnesses    [][]byte
}

// Build returns the canonical encoding of the Script transaction.
func (b *ScriptBuilder) Build() ([]byte, error) {
	if n := bits.OnesCount64(b.PolicyTypes); n != len(b.PolicyValues) {
		return nil, fmt.Errorf("policy types declare %d values, got %d", n, len(b.PolicyValues))
	}

	w := &writer{}
	w.word(uint64(KindScript))
	w.word(b.GasLimit)
	w.digest(b.ReceiptsRoot)
	w.word(uint64(len(b.Script)))
	w.word(uint64(len(b.ScriptData)))
	w.word(b.PolicyTypes)
	w.word(0) // inputs
	w.word(0) // outputs
	w.word(uint64(len(b.Witnesses)))

	w.bytes(b.Script)
	w.bytes(b.ScriptData)
	for _, v := range b.PolicyValues {
		w.word(v)
	}
	for _, witness := range b.Witnesses {
		w.word(uint64(len(witness)))
		w.bytes(witness)
	}
	return w.buf, nil
}

// EncodeOpaque returns a canonical payload of the given kind whose body is carried verbatim,
// zero-padded to the word size.
func EncodeOpaque(kind Kind, body []byte) []byte {
	w := &writer{}
	w.word(uint64(kind))
	w.bytes(body)
	return w.buf
}

type writer struct {
	buf []byte
}

func (w *writer) word(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) digest(d models.Digest) {
	w.buf = append(w.buf, d[:]...)
}

// bytes appends b followed by zero padding up to the word size.
func (w *writer) bytes(b []byte) {
	w.buf = append(w.buf, b...)
	if rem := len(b) % wordSize; rem != 0 {
		w.buf = append(w.buf, make([]byte, wordSize-rem)...)
	}
}
