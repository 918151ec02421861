package lstpool

import (
	"errors"
	"fmt"

	"github.com/Overclock-Validator/lstpool/pkg/sealevel"
)

// pool errors
var (
	ErrAddressMismatch      = errors.New("AddressMismatch")
	ErrUninitialized        = errors.New("Uninitialized")
	ErrAlreadyInitialized   = errors.New("AlreadyInitialized")
	ErrStakeOperationFailed = errors.New("StakeOperationFailed")
	ErrInvalidAmount        = errors.New("InvalidAmount")
	ErrBelowMinimum         = errors.New("BelowMinimum")
	ErrInsufficientFunds    = errors.New("InsufficientFunds")
	ErrZeroSupply           = errors.New("ZeroSupply")
	ErrZeroQuote            = errors.New("ZeroQuote")
	ErrArithmeticOverflow   = errors.New("ArithmeticOverflow")
	ErrLedgerCorrupted      = errors.New("LedgerCorrupted")
)

// ErrorCode is the stable numeric code a failed pool operation reports.
type ErrorCode uint32

const (
	CodeSuccess ErrorCode = iota
	CodeAddressMismatch
	CodeMissingRequiredSignature
	CodeInvalidAccountOwner
	CodeUninitialized
	CodeAlreadyInitialized
	CodeStakeOperationFailed
	CodeInvalidAmount
	CodeBelowMinimum
	CodeInsufficientFunds
	CodeZeroSupply
	CodeZeroQuote
	CodeArithmeticOverflow
	CodeLedgerCorrupted
	CodeInvalidInstructionData
	CodeNotEnoughAccountKeys
	CodeInvalidAccountData
	CodeInvalidSeed
	CodeUnknown ErrorCode = 0xff
)

var codeNames = map[ErrorCode]string{
	CodeSuccess:                  "Success",
	CodeAddressMismatch:          "AddressMismatch",
	CodeMissingRequiredSignature: "MissingRequiredSignature",
	CodeInvalidAccountOwner:      "InvalidAccountOwner",
	CodeUninitialized:            "Uninitialized",
	CodeAlreadyInitialized:       "AlreadyInitialized",
	CodeStakeOperationFailed:     "StakeOperationFailed",
	CodeInvalidAmount:            "InvalidAmount",
	CodeBelowMinimum:             "BelowMinimum",
	CodeInsufficientFunds:        "InsufficientFunds",
	CodeZeroSupply:               "ZeroSupply",
	CodeZeroQuote:                "ZeroQuote",
	CodeArithmeticOverflow:       "ArithmeticOverflow",
	CodeLedgerCorrupted:          "LedgerCorrupted",
	CodeInvalidInstructionData:   "InvalidInstructionData",
	CodeNotEnoughAccountKeys:     "NotEnoughAccountKeys",
	CodeInvalidAccountData:       "InvalidAccountData",
	CodeInvalidSeed:              "InvalidSeed",
	CodeUnknown:                  "Unknown",
}

func (code ErrorCode) String() string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(code))
}

// checked in order: a stake failure wrapping a host error reports the
// stake failure
var errCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrStakeOperationFailed, CodeStakeOperationFailed},
	{ErrLedgerCorrupted, CodeLedgerCorrupted},
	{ErrAddressMismatch, CodeAddressMismatch},
	{ErrUninitialized, CodeUninitialized},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrBelowMinimum, CodeBelowMinimum},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrZeroSupply, CodeZeroSupply},
	{ErrZeroQuote, CodeZeroQuote},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{sealevel.InstrErrMissingRequiredSignature, CodeMissingRequiredSignature},
	{sealevel.InstrErrInvalidAccountOwner, CodeInvalidAccountOwner},
	{sealevel.InstrErrInvalidInstructionData, CodeInvalidInstructionData},
	{sealevel.InstrErrNotEnoughAccountKeys, CodeNotEnoughAccountKeys},
	{sealevel.InstrErrInvalidAccountData, CodeInvalidAccountData},
	{sealevel.InstrErrInvalidSeeds, CodeInvalidSeed},
	{sealevel.InstrErrArithmeticOverflow, CodeArithmeticOverflow},
	{sealevel.TokenErrInsufficientFunds, CodeInsufficientFunds},
}

// CodeOf maps an error returned by the pool program, possibly wrapped, to
// its stable code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	for _, entry := range errCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}

// stakeOpError reports a failed call into the stake program. It matches
// both ErrStakeOperationFailed and the underlying cause.
type stakeOpError struct {
	op    string
	cause error
}

func stakeOpFailed(op string, cause error) error {
	return &stakeOpError{op: op, cause: cause}
}

func (e *stakeOpError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrStakeOperationFailed, e.op, e.cause)
}

func (e *stakeOpError) Is(target error) bool {
	return target == ErrStakeOperationFailed
}

func (e *stakeOpError) Unwrap() error {
	return e.cause
}
