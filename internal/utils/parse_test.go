package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseU64(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    uint64
		wantErr string
	}{
		{name: "zero", input: "0", want: 0},
		{name: "max", input: "18446744073709551615", want: ^uint64(0)},
		{name: "surrounding space", input: " 42 ", want: 42},
		{name: "overflow", input: "18446744073709551616", wantErr: "error parsing u64"},
		{name: "negative", input: "-1", wantErr: "error parsing u64"},
		{name: "hex is rejected", input: "0x10", wantErr: "error parsing u64"},
		{name: "empty", input: "", wantErr: "error parsing u64"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseU64(tc.input)
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseHeight(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    uint64
		wantErr string
	}{
		{name: "height", input: "3674822", want: 3674822},
		{name: "u32 max", input: "4294967295", want: 4294967295},
		{name: "beyond u32", input: "4294967296", wantErr: "error parsing height"},
		{name: "garbage", input: "abc", wantErr: "error parsing height"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseHeight(tc.input)
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDecodeHex(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    []byte
		wantErr string
	}{
		{name: "bytes", input: "0x00ff10", want: []byte{0x00, 0xff, 0x10}},
		{name: "empty payload", input: "0x", want: []byte{}},
		{name: "missing prefix", input: "00ff", wantErr: "error decoding hex"},
		{name: "odd length", input: "0x0", wantErr: "error decoding hex"},
		{name: "non hex", input: "0xzz", wantErr: "error decoding hex"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeHex(tc.input)
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestHeightCursor(t *testing.T) {
	assert.Nil(t, HeightCursor(0))
	if cursor := HeightCursor(3674822); assert.NotNil(t, cursor) {
		assert.Equal(t, "3674821", *cursor)
	}
}
