// Package result defines the result codes reported for every processed
// transaction. Each code doubles as a sentinel error so that the engine
// packages can return it directly and callers can match with errors.Is.
package result

import (
	"errors"
	"fmt"
)

// Code is a transaction result code. Zero means success.
type Code uint32

// Error implements the error interface.
func (c Code) Error() string {
	return c.Name()
}

// Name returns the stable, human-readable name of the code.
func (c Code) Name() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint32(c))
}

// OK is the success code. It is never returned as an error.
const OK Code = 0

// Validation, authorization, state-conflict and arithmetic failures.
// Values are part of the wire contract and must never be renumbered.
const (
	ErrInvalidBetAmount      Code = 1
	ErrMarketNotActive       Code = 2
	ErrMarketNotResolved     Code = 3
	ErrNoWinningPosition     Code = 4
	ErrAlreadyClaimed        Code = 5
	ErrUnauthorized          Code = 6
	ErrInsufficientBalance   Code = 7
	ErrMarketAlreadyResolved Code = 8
	ErrInvalidMarketTime     Code = 9
	ErrInvalidBetType        Code = 10
	ErrPlayerNotExist        Code = 11
	ErrPlayerAlreadyExists   Code = 12
	ErrNoFeesToWithdraw      Code = 13
	ErrOverflow              Code = 14
	ErrUnderflow             Code = 15
	ErrDivisionByZero        Code = 16
	ErrLiquidityTooHigh      Code = 17
	ErrInvalidCalculation    Code = 18
	ErrBetTooLarge           Code = 19
	ErrInvalidMarketTitle    Code = 20
	ErrInvalidShares         Code = 21
	ErrInsufficientShares    Code = 22
	ErrInsufficientPrizePool Code = 23
	ErrMarketNotFound        Code = 24
	ErrMarketNotResolvable   Code = 25
	ErrInvalidNonce          Code = 26
	ErrInvalidCommand        Code = 27
	ErrInternal              Code = 255
)

var names = map[Code]string{
	OK:                       "OK",
	ErrInvalidBetAmount:      "InvalidBetAmount",
	ErrMarketNotActive:       "MarketNotActive",
	ErrMarketNotResolved:     "MarketNotResolved",
	ErrNoWinningPosition:     "NoWinningPosition",
	ErrAlreadyClaimed:        "AlreadyClaimed",
	ErrUnauthorized:          "Unauthorized",
	ErrInsufficientBalance:   "InsufficientBalance",
	ErrMarketAlreadyResolved: "MarketAlreadyResolved",
	ErrInvalidMarketTime:     "InvalidMarketTime",
	ErrInvalidBetType:        "InvalidBetType",
	ErrPlayerNotExist:        "PlayerNotExist",
	ErrPlayerAlreadyExists:   "PlayerAlreadyExists",
	ErrNoFeesToWithdraw:      "NoFeesToWithdraw",
	ErrOverflow:              "Overflow",
	ErrUnderflow:             "Underflow",
	ErrDivisionByZero:        "DivisionByZero",
	ErrLiquidityTooHigh:      "LiquidityTooHigh",
	ErrInvalidCalculation:    "InvalidCalculation",
	ErrBetTooLarge:           "BetTooLarge",
	ErrInvalidMarketTitle:    "InvalidMarketTitle",
	ErrInvalidShares:         "InvalidShares",
	ErrInsufficientShares:    "InsufficientShares",
	ErrInsufficientPrizePool: "InsufficientPrizePool",
	ErrMarketNotFound:        "MarketNotFound",
	ErrMarketNotResolvable:   "MarketNotResolvable",
	ErrInvalidNonce:          "InvalidNonce",
	ErrInvalidCommand:        "InvalidCommand",
	ErrInternal:              "Internal",
}

// CodeOf maps an error to its result code. nil maps to OK; errors that do
// not wrap a Code map to ErrInternal.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ErrInternal
}

// Class groups codes by the error taxonomy.
type Class string

const (
	ClassNone          Class = "none"
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassState         Class = "state"
	ClassArithmetic    Class = "arithmetic"
	ClassInternal      Class = "internal"
)

// Classify returns the taxonomy class of c.
func Classify(c Code) Class {
	switch c {
	case OK:
		return ClassNone
	case ErrInvalidBetAmount, ErrInvalidBetType, ErrBetTooLarge, ErrInvalidMarketTime,
		ErrInvalidMarketTitle, ErrInvalidShares, ErrInvalidCommand:
		return ClassValidation
	case ErrUnauthorized, ErrPlayerNotExist, ErrPlayerAlreadyExists, ErrInvalidNonce:
		return ClassAuthorization
	case ErrMarketNotActive, ErrMarketNotResolved, ErrMarketAlreadyResolved, ErrMarketNotResolvable,
		ErrMarketNotFound, ErrInsufficientBalance, ErrInsufficientShares, ErrInsufficientPrizePool,
		ErrAlreadyClaimed, ErrNoFeesToWithdraw, ErrNoWinningPosition:
		return ClassState
	case ErrOverflow, ErrUnderflow, ErrDivisionByZero, ErrLiquidityTooHigh, ErrInvalidCalculation:
		return ClassArithmetic
	default:
		return ClassInternal
	}
}
