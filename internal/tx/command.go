// Package tx decodes transaction words into commands and encodes the
// flattened event log a processed transaction produces.
//
// Word 0 of every transaction packs the opcode into its low 8 bits and the
// nonce into bits 16 and up. Parameters follow in fixed positions.
package tx

import (
	"fmt"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/registry"
	"github.com/atmx/prediction-amm/internal/result"
)

// Opcode selects the command.
type Opcode uint8

const (
	OpTick          Opcode = 0
	OpInstallPlayer Opcode = 1
	OpWithdraw      Opcode = 2
	OpDeposit       Opcode = 3
	OpBet           Opcode = 4
	OpSell          Opcode = 5
	OpResolve       Opcode = 6
	OpClaim         Opcode = 7
	OpWithdrawFees  Opcode = 8
	OpCreateMarket  Opcode = 9
)

var opNames = [...]string{
	OpTick:          "tick",
	OpInstallPlayer: "install_player",
	OpWithdraw:      "withdraw",
	OpDeposit:       "deposit",
	OpBet:           "bet",
	OpSell:          "sell",
	OpResolve:       "resolve",
	OpClaim:         "claim",
	OpWithdrawFees:  "withdraw_fees",
	OpCreateMarket:  "create_market",
}

func (o Opcode) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// MaxNonce is the largest nonce word 0 can carry.
const MaxNonce = 1<<48 - 1

// Command is a decoded transaction. Only the fields relevant to Op are set.
type Command struct {
	Op    Opcode
	Nonce uint64

	// Bet, Sell, Resolve, Claim, WithdrawFees.
	MarketID uint64
	// Bet and Sell side; Resolve outcome.
	Side model.Side
	// Bet stake, Sell shares, Deposit and Withdraw amount.
	Amount uint64

	// Deposit target.
	Target model.PlayerID
	// Withdraw parameters as submitted, handed to settlement unchanged.
	Withdraw [3]uint64

	// CreateMarket parameters.
	Market registry.CreateParams
}

// AdminOnly reports whether the command requires the admin key.
func (c Command) AdminOnly() bool {
	switch c.Op {
	case OpTick, OpDeposit, OpResolve, OpWithdrawFees, OpCreateMarket:
		return true
	}
	return false
}

// Decode parses transaction words into a Command.
func Decode(words []uint64) (Command, error) {
	if len(words) == 0 {
		return Command{}, result.ErrInvalidCommand
	}
	c := Command{
		Op:    Opcode(words[0] & 0xff),
		Nonce: words[0] >> 16,
	}
	p := words[1:]

	switch c.Op {
	case OpTick, OpInstallPlayer:
		if len(p) != 0 {
			return Command{}, result.ErrInvalidCommand
		}

	case OpWithdraw:
		if len(p) != 3 {
			return Command{}, result.ErrInvalidCommand
		}
		copy(c.Withdraw[:], p)
		c.Amount = p[2] & 0xffffffff

	case OpDeposit:
		if len(p) != 4 || p[2] != 0 {
			return Command{}, result.ErrInvalidCommand
		}
		c.Target = model.PlayerID{p[0], p[1]}
		c.Amount = p[3]

	case OpBet, OpSell:
		if len(p) != 3 {
			return Command{}, result.ErrInvalidCommand
		}
		side, ok := model.SideFromWord(p[1])
		if !ok {
			return Command{}, result.ErrInvalidBetType
		}
		c.MarketID, c.Side, c.Amount = p[0], side, p[2]

	case OpResolve:
		if len(p) != 2 {
			return Command{}, result.ErrInvalidCommand
		}
		side, ok := model.SideFromWord(p[1])
		if !ok {
			return Command{}, result.ErrInvalidBetType
		}
		c.MarketID, c.Side = p[0], side

	case OpClaim, OpWithdrawFees:
		if len(p) != 1 {
			return Command{}, result.ErrInvalidCommand
		}
		c.MarketID = p[0]

	case OpCreateMarket:
		if len(p) < 1 {
			return Command{}, result.ErrInvalidCommand
		}
		titleLen := p[0]
		if titleLen > MaxTitleWords {
			return Command{}, result.ErrInvalidMarketTitle
		}
		n := int(titleLen)
		if len(p) != 1+n+5 {
			return Command{}, result.ErrInvalidCommand
		}
		title, err := DecodeTitle(p[1 : 1+n])
		if err != nil {
			return Command{}, err
		}
		rest := p[1+n:]
		c.Market = registry.CreateParams{
			Title:            title,
			StartOffset:      rest[0],
			EndOffset:        rest[1],
			ResolutionOffset: rest[2],
			YesLiquidity:     rest[3],
			NoLiquidity:      rest[4],
		}

	default:
		return Command{}, result.ErrInvalidCommand
	}
	return c, nil
}

// Encode is the inverse of Decode.
func (c Command) Encode() []uint64 {
	head := uint64(c.Op) | c.Nonce<<16
	switch c.Op {
	case OpWithdraw:
		return []uint64{head, c.Withdraw[0], c.Withdraw[1], c.Withdraw[2]}
	case OpDeposit:
		return []uint64{head, c.Target[0], c.Target[1], 0, c.Amount}
	case OpBet, OpSell:
		return []uint64{head, c.MarketID, uint64(c.Side), c.Amount}
	case OpResolve:
		return []uint64{head, c.MarketID, uint64(c.Side)}
	case OpClaim, OpWithdrawFees:
		return []uint64{head, c.MarketID}
	case OpCreateMarket:
		title := EncodeTitle(c.Market.Title)
		words := make([]uint64, 0, 2+len(title)+5)
		words = append(words, head, uint64(len(title)))
		words = append(words, title...)
		return append(words,
			c.Market.StartOffset, c.Market.EndOffset, c.Market.ResolutionOffset,
			c.Market.YesLiquidity, c.Market.NoLiquidity)
	default:
		return []uint64{head}
	}
}
