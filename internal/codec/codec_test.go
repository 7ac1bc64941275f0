package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/rootcheck/internal/models"
)

func ptr(s string) *string { return &s }

func hexDigest(b byte) string {
	return "0x" + strings.Repeat(string("0123456789abcdef"[b>>4])+string("0123456789abcdef"[b&0x0f]), models.DigestSize)
}

func TestDecodeScriptTransaction(t *testing.T) {
	root := models.Digest{0xaa, 0xbb}
	b := &ScriptBuilder{
		GasLimit:     1_000_000,
		ReceiptsRoot: root,
		Script:       []byte{0x01, 0x02, 0x03},
		ScriptData:   []byte("hello world"),
		PolicyTypes:  0b101,
		PolicyValues: []uint64{7, 9},
		Witnesses:    [][]byte{[]byte("sig")},
	}
	payload, err := b.Build()
	require.NoError(t, err)
	assert.Zero(t, len(payload)%8)

	tx, err := DecodeTransaction(payload)
	require.NoError(t, err)
	assert.Equal(t, KindScript, tx.Kind())

	got, ok := tx.ReceiptsRoot()
	assert.True(t, ok)
	assert.Equal(t, root, got)

	header := tx.Script()
	require.NotNil(t, header)
	assert.Equal(t, uint64(1_000_000), header.GasLimit)
	assert.Equal(t, uint64(3), header.ScriptLength)
	assert.Equal(t, uint64(11), header.ScriptDataLength)
	assert.Equal(t, uint64(1), header.WitnessesCount)

	assert.Equal(t, payload, tx.Encode())
}

func TestEncodeReturnsCopy(t *testing.T) {
	payload := EncodeOpaque(KindMint, []byte("body"))
	tx, err := DecodeTransaction(payload)
	require.NoError(t, err)

	encoded := tx.Encode()
	encoded[0] ^= 0xff
	assert.Equal(t, payload, tx.Encode())
}

func TestDecodeNonScriptTransaction(t *testing.T) {
	for _, kind := range []Kind{KindCreate, KindMint, KindUpgrade, KindUpload, KindBlob} {
		t.Run(kind.String(), func(t *testing.T) {
			body := []byte{0x01}
			if layout, ok := bodyLayouts[kind]; ok {
				body = make([]byte, layout.headerSize-wordSize)
			}
			tx, err := DecodeTransaction(EncodeOpaque(kind, body))
			require.NoError(t, err)
			assert.Equal(t, kind, tx.Kind())
			assert.Nil(t, tx.Script())
			_, ok := tx.ReceiptsRoot()
			assert.False(t, ok)
		})
	}
}

func TestDecodeMalformedTransaction(t *testing.T) {
	valid, err := (&ScriptBuilder{Script: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}}).Build()
	require.NoError(t, err)

	overlong := append([]byte{}, valid...)
	binary.BigEndian.PutUint64(overlong[48:], 1<<20) // script length

	overflow := append([]byte{}, valid...)
	binary.BigEndian.PutUint64(overflow[48:], ^uint64(0))

	tooManyWitnesses := append([]byte{}, valid...)
	binary.BigEndian.PutUint64(tooManyWitnesses[88:], 100)

	cases := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{name: "empty", payload: nil, wantErr: "shorter than the variant tag"},
		{name: "unaligned", payload: append(EncodeOpaque(KindMint, nil), 0x00), wantErr: "not 8-byte aligned"},
		{name: "unknown tag", payload: EncodeOpaque(Kind(42), nil), wantErr: "unknown variant tag 42"},
		{name: "truncated script header", payload: valid[:64], wantErr: "shorter than its 96-byte header"},
		{name: "script length past end", payload: overlong, wantErr: "do not fit"},
		{name: "script length overflow", payload: overflow, wantErr: "do not fit"},
		{name: "too many witnesses", payload: tooManyWitnesses, wantErr: "witnesses do not fit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTransaction(tc.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTransaction))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// sectionedPayload returns a header of kind with count words set at the given payload offsets,
// followed by extra zero bytes.
func sectionedPayload(kind Kind, counts map[int]uint64, extra int) []byte {
	b := EncodeOpaque(kind, make([]byte, bodyLayouts[kind].headerSize-wordSize+extra))
	for offset, v := range counts {
		binary.BigEndian.PutUint64(b[offset:], v)
	}
	return b
}

func TestDecodeNonScriptSections(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{name: "create with storage slots", payload: sectionedPayload(KindCreate, map[int]uint64{48: 2, 80: 1}, 2*64+8)},
		{name: "upload with proof set", payload: sectionedPayload(KindUpload, map[int]uint64{64: 3, 72: 0b11}, 3*32+16)},
		{name: "blob with witness", payload: sectionedPayload(KindBlob, map[int]uint64{72: 1}, 16)},
		{name: "truncated create header", payload: EncodeOpaque(KindCreate, make([]byte, 40)), wantErr: "Create payload of 48 bytes is shorter than its 88-byte header"},
		{name: "create storage slots past end", payload: sectionedPayload(KindCreate, map[int]uint64{48: 2}, 64), wantErr: "Create declares 2 storage slots that do not fit"},
		{name: "create witnesses past end", payload: sectionedPayload(KindCreate, map[int]uint64{80: 100}, 8), wantErr: "100 witnesses"},
		{name: "upload proof set overflow", payload: sectionedPayload(KindUpload, map[int]uint64{64: ^uint64(0)}, 0), wantErr: "proof set entries"},
		{name: "blob policies past end", payload: sectionedPayload(KindBlob, map[int]uint64{48: 0b111}, 16), wantErr: "3 policies"},
		{name: "blob inputs after policies", payload: sectionedPayload(KindBlob, map[int]uint64{48: 0b1, 56: 1}, 8), wantErr: "1 inputs"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTransaction(tc.payload)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTransaction))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestScriptBuilderPolicyMismatch(t *testing.T) {
	_, err := (&ScriptBuilder{PolicyTypes: 0b11, PolicyValues: []uint64{1}}).Build()
	assert.Error(t, err)
}

func TestReceiptEncoding(t *testing.T) {
	id := hexDigest(0x11)
	to := hexDigest(0x22)
	asset := hexDigest(0x33)

	call := models.Receipt{
		ReceiptType: "CALL",
		ID:          ptr(id),
		To:          ptr(to),
		Amount:      ptr("5"),
		AssetID:     ptr(asset),
		Gas:         ptr("100"),
		Param1:      ptr("1"),
		Param2:      ptr("2"),
		Pc:          ptr("10"),
		Is:          ptr("11"),
	}
	r, err := DecodeReceipt(call)
	require.NoError(t, err)
	assert.Equal(t, ReceiptCall, r.Kind())

	enc := r.Encode()
	require.Len(t, enc, 8+32+32+8+32+8*5)
	assert.Equal(t, uint64(ReceiptCall), binary.BigEndian.Uint64(enc[0:]))
	assert.Equal(t, byte(0x11), enc[8])
	assert.Equal(t, byte(0x22), enc[40])
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(enc[72:]))
	assert.Equal(t, byte(0x33), enc[80])
	assert.Equal(t, uint64(100), binary.BigEndian.Uint64(enc[112:]))
	assert.Equal(t, uint64(11), binary.BigEndian.Uint64(enc[144:]))
}

func TestScriptResultEncoding(t *testing.T) {
	cases := []struct {
		name   string
		result string
		want   []uint64
	}{
		{name: "success", result: "0", want: []uint64{uint64(ReceiptScriptResult), 0, 500}},
		{name: "revert", result: "1", want: []uint64{uint64(ReceiptScriptResult), 1, 500}},
		{name: "panic", result: "2", want: []uint64{uint64(ReceiptScriptResult), 2, 500}},
		{name: "generic failure", result: "77", want: []uint64{uint64(ReceiptScriptResult), 3, 77, 500}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := DecodeReceipt(models.Receipt{ReceiptType: "SCRIPT_RESULT", Result: ptr(tc.result), GasUsed: ptr("500")})
			require.NoError(t, err)
			enc := r.Encode()
			require.Len(t, enc, 8*len(tc.want))
			for i, w := range tc.want {
				assert.Equal(t, w, binary.BigEndian.Uint64(enc[i*8:]), "word %d", i)
			}
		})
	}
}

func TestReceiptDataIsNotEncoded(t *testing.T) {
	base := models.Receipt{
		ReceiptType: "LOG_DATA",
		ID:          ptr(hexDigest(0x01)),
		Ra:          ptr("1"),
		Rb:          ptr("2"),
		Ptr:         ptr("3"),
		Len:         ptr("4"),
		Digest:      ptr(hexDigest(0x05)),
		Pc:          ptr("6"),
		Is:          ptr("7"),
		Data:        ptr("0xdeadbeef"),
	}
	withOtherData := base
	withOtherData.Data = ptr("0x00")

	a, err := DecodeReceipt(base)
	require.NoError(t, err)
	b, err := DecodeReceipt(withOtherData)
	require.NoError(t, err)
	assert.Equal(t, a.Encode(), b.Encode())
}

func TestReceiptIDIsRequired(t *testing.T) {
	contract := ptr(hexDigest(0x11))
	cases := []models.Receipt{
		{ReceiptType: "PANIC", ContractID: contract, Reason: ptr("1"), Pc: ptr("2"), Is: ptr("3")},
		{ReceiptType: "RETURN", ContractID: contract, Val: ptr("1"), Pc: ptr("2"), Is: ptr("3")},
		{ReceiptType: "CALL", ContractID: contract, To: ptr(hexDigest(0x22)), Amount: ptr("0"), AssetID: ptr(hexDigest(0x33)),
			Gas: ptr("1"), Param1: ptr("0"), Param2: ptr("0"), Pc: ptr("2"), Is: ptr("3")},
	}

	for _, receipt := range cases {
		t.Run(receipt.ReceiptType, func(t *testing.T) {
			_, err := DecodeReceipt(receipt)
			var convErr *ConversionError
			require.True(t, errors.As(err, &convErr))
			assert.Equal(t, "id", convErr.Field)
			assert.Contains(t, err.Error(), "missing required field")
		})
	}
}

func TestPanicReceiptEncoding(t *testing.T) {
	// Panic reason 0x2b raised by instruction 0x12345678.
	packed := uint64(0x2b)<<56 | uint64(0x12345678)<<24
	r, err := DecodeReceipt(models.Receipt{
		ReceiptType: "PANIC",
		ID:          ptr(hexDigest(0x44)),
		Reason:      ptr(strconv.FormatUint(packed, 10)),
		Pc:          ptr("10360"),
		Is:          ptr("10344"),
		ContractID:  ptr(hexDigest(0x55)),
	})
	require.NoError(t, err)

	enc := r.Encode()
	require.Len(t, enc, 8+32+8*4)
	assert.Equal(t, uint64(ReceiptPanic), binary.BigEndian.Uint64(enc[0:]))
	assert.Equal(t, byte(0x44), enc[8])
	assert.Equal(t, uint64(0x2b), binary.BigEndian.Uint64(enc[40:]))
	assert.Equal(t, uint64(0x12345678), binary.BigEndian.Uint64(enc[48:]))
	assert.Equal(t, uint64(10360), binary.BigEndian.Uint64(enc[56:]))
	assert.Equal(t, uint64(10344), binary.BigEndian.Uint64(enc[64:]))
	assert.NotContains(t, string(enc), string(bytes.Repeat([]byte{0x55}, 32)))
}

func TestDecodeReceiptErrors(t *testing.T) {
	cases := []struct {
		name      string
		receipt   models.Receipt
		wantField string
		wantErr   string
	}{
		{
			name:    "unknown type",
			receipt: models.Receipt{ReceiptType: "NOPE"},
			wantErr: "unknown receipt type",
		},
		{
			name:      "missing field",
			receipt:   models.Receipt{ReceiptType: "RETURN", ID: ptr(hexDigest(0x01)), Val: ptr("1"), Pc: ptr("2")},
			wantField: "is",
			wantErr:   "missing required field",
		},
		{
			name:      "bad integer",
			receipt:   models.Receipt{ReceiptType: "SCRIPT_RESULT", Result: ptr("x"), GasUsed: ptr("1")},
			wantField: "result",
			wantErr:   "error parsing u64",
		},
		{
			name:      "short digest",
			receipt:   models.Receipt{ReceiptType: "MINT", SubID: ptr("0x01"), ContractID: ptr(hexDigest(0x02)), Val: ptr("1"), Pc: ptr("2"), Is: ptr("3")},
			wantField: "subId",
			wantErr:   "want 32",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeReceipt(tc.receipt)
			require.Error(t, err)
			var convErr *ConversionError
			require.True(t, errors.As(err, &convErr))
			assert.Equal(t, tc.wantField, convErr.Field)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestEveryReceiptKindHasLayout(t *testing.T) {
	for name, kind := range receiptKinds {
		_, ok := layouts[kind]
		assert.True(t, ok, name)
		assert.Equal(t, name, kind.String())
	}
}
