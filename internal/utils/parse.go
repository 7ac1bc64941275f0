package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// ParseU64 parses a decimal U64 scalar as served by the node.
func ParseU64(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "error parsing u64")
	}
	return v, nil
}

// ParseHeight parses a block height. Heights are U32 on the node.
func ParseHeight(s string) (uint64, error) {
	height, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.WithMessage(err, "error parsing height")
	}
	return height, nil
}

// DecodeHex decodes a 0x-prefixed hex string. An empty payload ("0x") decodes to an empty slice.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "0x" || s == "0X" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.WithMessage(err, "error decoding hex")
	}
	return b, nil
}

// HeightCursor returns the pagination cursor that precedes height, or nil for the genesis block.
func HeightCursor(height uint64) *string {
	if height == 0 {
		return nil
	}
	cursor := fmt.Sprintf("%d", height-1)
	return &cursor
}
