// Package merkle computes binary Merkle roots compatible with the Fuel binary Merkle tree.
//
// Leaves are hashed as SHA256(0x00 || leaf) and internal nodes as SHA256(0x01 || left || right).
// The root of an empty tree is SHA256(""). For n leaves the left subtree holds the largest power
// of two strictly smaller than n; an unpaired rightmost subtree is promoted unchanged.
package merkle

import (
	sha256 "github.com/minio/sha256-simd"

	"github.com/manifest-network/rootcheck/internal/models"
)

const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// EmptyRoot is the root of a tree with no leaves.
var EmptyRoot = models.Digest(sha256.Sum256(nil))

type node struct {
	height uint32
	hash   models.Digest
}

// Accumulator appends leaves one at a time and produces the root on demand.
// The zero value is ready to use. It is not safe for concurrent use.
type Accumulator struct {
	stack []node
	count int
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Push appends one leaf. Any length, including zero, is accepted.
func (a *Accumulator) Push(leaf []byte) {
	a.stack = append(a.stack, node{height: 0, hash: LeafHash(leaf)})
	a.count++
	for len(a.stack) > 1 {
		right := a.stack[len(a.stack)-1]
		left := a.stack[len(a.stack)-2]
		if left.height != right.height {
			break
		}
		a.stack = a.stack[:len(a.stack)-2]
		a.stack = append(a.stack, node{height: left.height + 1, hash: NodeHash(left.hash, right.hash)})
	}
}

// Len returns the number of leaves pushed so far.
func (a *Accumulator) Len() int {
	return a.count
}

// Root returns the Merkle root of the leaves pushed so far. It does not modify the accumulator.
func (a *Accumulator) Root() models.Digest {
	if len(a.stack) == 0 {
		return EmptyRoot
	}
	root := a.stack[len(a.stack)-1].hash
	for i := len(a.stack) - 2; i >= 0; i-- {
		root = NodeHash(a.stack[i].hash, root)
	}
	return root
}

// RootOf returns the Merkle root of leaves in the given order.
func RootOf(leaves ...[]byte) models.Digest {
	acc := New()
	for _, leaf := range leaves {
		acc.Push(leaf)
	}
	return acc.Root()
}

// LeafHash returns SHA256(0x00 || leaf).
func LeafHash(leaf []byte) models.Digest {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(leaf)
	var d models.Digest
	h.Sum(d[:0])
	return d
}

// NodeHash returns SHA256(0x01 || left || right).
func NodeHash(left, right models.Digest) models.Digest {
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var d models.Digest
	h.Sum(d[:0])
	return d
}
