package codec

import (
	"fmt"

	"github.com/manifest-network/rootcheck/internal/models"
	"github.com/manifest-network/rootcheck/internal/utils"
)

// ReceiptKind is the receipt variant discriminant.
type ReceiptKind uint64

const (
	ReceiptCall ReceiptKind = iota
	ReceiptReturn
	ReceiptReturnData
	ReceiptPanic
	ReceiptRevert
	ReceiptLog
	ReceiptLogData
	ReceiptTransfer
	ReceiptTransferOut
	ReceiptScriptResult
	ReceiptMessageOut
	ReceiptMint
	ReceiptBurn
)

var receiptKinds = map[string]ReceiptKind{
	"CALL":          ReceiptCall,
	"RETURN":        ReceiptReturn,
	"RETURN_DATA":   ReceiptReturnData,
	"PANIC":         ReceiptPanic,
	"REVERT":        ReceiptRevert,
	"LOG":           ReceiptLog,
	"LOG_DATA":      ReceiptLogData,
	"TRANSFER":      ReceiptTransfer,
	"TRANSFER_OUT":  ReceiptTransferOut,
	"SCRIPT_RESULT": ReceiptScriptResult,
	"MESSAGE_OUT":   ReceiptMessageOut,
	"MINT":          ReceiptMint,
	"BURN":          ReceiptBurn,
}

func (k ReceiptKind) String() string {
	for name, kind := range receiptKinds {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("ReceiptKind(%d)", uint64(k))
}

// ScriptExecutionResult discriminants.
const (
	resultSuccess uint64 = iota
	resultRevert
	resultPanic
	resultGenericFailure
)

type fieldType int

const (
	fieldWord fieldType = iota
	fieldDigest
	fieldScriptResult
	fieldPanicInstruction
)

// A panic instruction is served as one packed word: the panic reason in the top byte and the
// 32-bit faulting instruction below it. Its canonical form is two words.
const (
	panicReasonShift      = 56
	panicInstructionShift = 24
	panicInstructionMask  = 0xffff_ffff
)

type field struct {
	name string
	typ  fieldType
	get  func(*models.Receipt) *string
}

func word(name string, get func(*models.Receipt) *string) field {
	return field{name: name, typ: fieldWord, get: get}
}

func digest(name string, get func(*models.Receipt) *string) field {
	return field{name: name, typ: fieldDigest, get: get}
}

var (
	fID         = digest("id", func(r *models.Receipt) *string { return r.ID })
	fTo         = digest("to", func(r *models.Receipt) *string { return r.To })
	fToAddress  = digest("toAddress", func(r *models.Receipt) *string { return r.ToAddress })
	fAssetID    = digest("assetId", func(r *models.Receipt) *string { return r.AssetID })
	fDigest     = digest("digest", func(r *models.Receipt) *string { return r.Digest })
	fSender     = digest("sender", func(r *models.Receipt) *string { return r.Sender })
	fRecipient  = digest("recipient", func(r *models.Receipt) *string { return r.Recipient })
	fNonce      = digest("nonce", func(r *models.Receipt) *string { return r.Nonce })
	fSubID      = digest("subId", func(r *models.Receipt) *string { return r.SubID })
	fContractID = digest("contractId", func(r *models.Receipt) *string { return r.ContractID })
	fAmount     = word("amount", func(r *models.Receipt) *string { return r.Amount })
	fGas        = word("gas", func(r *models.Receipt) *string { return r.Gas })
	fParam1     = word("param1", func(r *models.Receipt) *string { return r.Param1 })
	fParam2     = word("param2", func(r *models.Receipt) *string { return r.Param2 })
	fPc         = word("pc", func(r *models.Receipt) *string { return r.Pc })
	fIs         = word("is", func(r *models.Receipt) *string { return r.Is })
	fVal        = word("val", func(r *models.Receipt) *string { return r.Val })
	fPtr        = word("ptr", func(r *models.Receipt) *string { return r.Ptr })
	fLen        = word("len", func(r *models.Receipt) *string { return r.Len })
	fRa         = word("ra", func(r *models.Receipt) *string { return r.Ra })
	fRb         = word("rb", func(r *models.Receipt) *string { return r.Rb })
	fRc         = word("rc", func(r *models.Receipt) *string { return r.Rc })
	fRd         = word("rd", func(r *models.Receipt) *string { return r.Rd })
	fGasUsed    = word("gasUsed", func(r *models.Receipt) *string { return r.GasUsed })
	fResult     = field{name: "result", typ: fieldScriptResult, get: func(r *models.Receipt) *string { return r.Result }}
	fPanic      = field{name: "reason", typ: fieldPanicInstruction, get: func(r *models.Receipt) *string { return r.Reason }}
)

// layouts lists the canonically encoded fields of each receipt kind in order.
// Data payloads are committed through their length and digest only, and a panic's contractId
// is not committed at all.
var layouts = map[ReceiptKind][]field{
	ReceiptCall:         {fID, fTo, fAmount, fAssetID, fGas, fParam1, fParam2, fPc, fIs},
	ReceiptReturn:       {fID, fVal, fPc, fIs},
	ReceiptReturnData:   {fID, fPtr, fLen, fDigest, fPc, fIs},
	ReceiptPanic:        {fID, fPanic, fPc, fIs},
	ReceiptRevert:       {fID, fRa, fPc, fIs},
	ReceiptLog:          {fID, fRa, fRb, fRc, fRd, fPc, fIs},
	ReceiptLogData:      {fID, fRa, fRb, fPtr, fLen, fDigest, fPc, fIs},
	ReceiptTransfer:     {fID, fTo, fAmount, fAssetID, fPc, fIs},
	ReceiptTransferOut:  {fID, fToAddress, fAmount, fAssetID, fPc, fIs},
	ReceiptScriptResult: {fResult, fGasUsed},
	ReceiptMessageOut:   {fSender, fRecipient, fAmount, fNonce, fLen, fDigest},
	ReceiptMint:         {fSubID, fContractID, fVal, fPc, fIs},
	ReceiptBurn:         {fSubID, fContractID, fVal, fPc, fIs},
}

// ConversionError reports a receipt that cannot be converted into its canonical form.
type ConversionError struct {
	ReceiptType string
	Field       string
	Err         error
}

func (e *ConversionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("failed to convert %s receipt: %v", e.ReceiptType, e.Err)
	}
	return fmt.Sprintf("failed to convert %s receipt field %q: %v", e.ReceiptType, e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Receipt is a typed receipt in canonical form.
type Receipt struct {
	kind ReceiptKind
	body []byte
}

// Kind returns the receipt variant.
func (r Receipt) Kind() ReceiptKind {
	return r.kind
}

// Encode returns the canonical encoding of the receipt.
func (r Receipt) Encode() []byte {
	w := &writer{buf: make([]byte, 0, wordSize+len(r.body))}
	w.word(uint64(r.kind))
	w.buf = append(w.buf, r.body...)
	return w.buf
}

// DecodeReceipt converts the node's receipt representation into a typed receipt.
func DecodeReceipt(in models.Receipt) (Receipt, error) {
	kind, ok := receiptKinds[in.ReceiptType]
	if !ok {
		return Receipt{}, &ConversionError{ReceiptType: in.ReceiptType, Err: fmt.Errorf("unknown receipt type")}
	}

	w := &writer{}
	for _, f := range layouts[kind] {
		raw := f.get(&in)
		if raw == nil {
			return Receipt{}, &ConversionError{ReceiptType: in.ReceiptType, Field: f.name, Err: fmt.Errorf("missing required field")}
		}
		if err := encodeField(w, f.typ, *raw); err != nil {
			return Receipt{}, &ConversionError{ReceiptType: in.ReceiptType, Field: f.name, Err: err}
		}
	}
	return Receipt{kind: kind, body: w.buf}, nil
}

func encodeField(w *writer, typ fieldType, raw string) error {
	switch typ {
	case fieldWord:
		v, err := utils.ParseU64(raw)
		if err != nil {
			return err
		}
		w.word(v)
	case fieldDigest:
		d, err := models.ParseDigest(raw)
		if err != nil {
			return err
		}
		w.digest(d)
	case fieldScriptResult:
		v, err := utils.ParseU64(raw)
		if err != nil {
			return err
		}
		switch v {
		case resultSuccess, resultRevert, resultPanic:
			w.word(v)
		default:
			w.word(resultGenericFailure)
			w.word(v)
		}
	case fieldPanicInstruction:
		v, err := utils.ParseU64(raw)
		if err != nil {
			return err
		}
		w.word(v >> panicReasonShift)
		w.word((v >> panicInstructionShift) & panicInstructionMask)
	default:
		return fmt.Errorf("unsupported field type %d", typ)
	}
	return nil
}
