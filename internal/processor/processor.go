// Package processor applies decoded commands to the engine's world state.
//
// A Processor owns one WorldState and executes transactions strictly one
// at a time. Each transaction either commits all of its effects or, on
// failure, none of them beyond the consumed nonce. The processor is not
// safe for concurrent use; callers serialize access.
package processor

import (
	"errors"

	"github.com/atmx/prediction-amm/internal/amm"
	"github.com/atmx/prediction-amm/internal/ledger"
	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/registry"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
	"github.com/atmx/prediction-amm/internal/tx"
)

// DefaultInitialBalance is credited to every newly installed player.
const DefaultInitialBalance = 1_000_000

// Checkpoint defaults.
const (
	DefaultCheckpointTicks     = 600
	DefaultTxSizeThreshold     = 40
	DefaultSettlementThreshold = 40
)

// ErrInvalidCheckpoint is returned when a checkpoint trigger is zero.
var ErrInvalidCheckpoint = errors.New("processor: checkpoint thresholds must be positive")

// Config parameterizes a Processor.
type Config struct {
	AdminKey       model.PublicKey
	InitialBalance uint64
	FeeRate        uint64
	FeeBasis       uint64

	// EnforceResolutionTime rejects Resolve before a market's resolution
	// time. When false an admin may resolve at any time.
	EnforceResolutionTime bool

	CheckpointTicks     uint64
	TxSizeThreshold     uint64
	SettlementThreshold int
}

// DefaultConfig returns the standard configuration with a zero admin key.
func DefaultConfig() Config {
	return Config{
		InitialBalance:      DefaultInitialBalance,
		FeeRate:             safemath.DefaultFeeRate,
		FeeBasis:            safemath.FeeBasisPoints,
		CheckpointTicks:     DefaultCheckpointTicks,
		TxSizeThreshold:     DefaultTxSizeThreshold,
		SettlementThreshold: DefaultSettlementThreshold,
	}
}

// WorldState is the complete mutable state of the engine.
type WorldState struct {
	Tick         uint64
	TotalPlayers uint64
	TxSize       uint64
	TxCounter    uint64

	Markets   *registry.Registry
	Accounts  *ledger.Accounts
	Positions *ledger.Ledger

	settlements    []model.Settlement
	checkpointTick uint64
}

// NewWorldState returns an empty world at tick 0.
func NewWorldState() *WorldState {
	return &WorldState{
		Markets:   registry.New(),
		Accounts:  ledger.NewAccounts(),
		Positions: ledger.NewLedger(),
	}
}

// Global returns the persisted global record.
func (w *WorldState) Global() model.GlobalState {
	return model.GlobalState{
		Tick:         w.Tick,
		TotalPlayers: w.TotalPlayers,
		TxSize:       w.TxSize,
		TxCounter:    w.TxCounter,
		NextMarketID: w.Markets.NextID(),
		MarketIDs:    w.Markets.IDs(),
	}
}

// PendingSettlements returns the number of queued withdrawals.
func (w *WorldState) PendingSettlements() int {
	return len(w.settlements)
}

// Fill describes the trade-side effect of an accepted bet, sell or claim.
type Fill struct {
	Action string // "bet", "sell" or "claim"
	Market uint64
	Side   model.Side
	Amount uint64 // paid in on bet, paid out on sell and claim
	Shares uint64
	Fee    uint64
}

// Receipt is the outcome of one transaction.
type Receipt struct {
	Op            tx.Opcode
	Code          result.Code
	CorrelationID uint64
	Player        model.PlayerID
	Tick          uint64
	Events        []uint64
	Fill          *Fill
}

// Err returns the failure as an error, or nil on success.
func (r Receipt) Err() error {
	if r.Code == result.OK {
		return nil
	}
	return r.Code
}

// Output is the host-facing result: [code, correlation id, events...].
func (r Receipt) Output() []uint64 {
	out := make([]uint64, 0, 2+len(r.Events))
	out = append(out, uint64(r.Code), r.CorrelationID)
	return append(out, r.Events...)
}

// Processor executes transactions against a WorldState.
type Processor struct {
	cfg    Config
	engine *amm.Engine
	state  *WorldState
}

// New creates a processor over an empty world.
func New(cfg Config) (*Processor, error) {
	engine, err := amm.NewEngine(cfg.FeeRate, cfg.FeeBasis)
	if err != nil {
		return nil, err
	}
	if cfg.CheckpointTicks == 0 || cfg.TxSizeThreshold == 0 || cfg.SettlementThreshold <= 0 {
		return nil, ErrInvalidCheckpoint
	}
	return &Processor{cfg: cfg, engine: engine, state: NewWorldState()}, nil
}

// State exposes the world for read-only queries.
func (p *Processor) State() *WorldState { return p.state }

// Engine returns the market maker used for pricing.
func (p *Processor) Engine() *amm.Engine { return p.engine }

// AdminKey returns the configured admin public key.
func (p *Processor) AdminKey() model.PublicKey { return p.cfg.AdminKey }

// Process decodes and executes one transaction signed by pkey.
func (p *Processor) Process(pkey model.PublicKey, words []uint64) Receipt {
	pid := pkey.PlayerID()
	r := Receipt{Op: opcodeOf(words), Player: pid}

	cmd, err := tx.Decode(words)
	if err != nil {
		return p.finish(r, err, nil)
	}
	if cmd.AdminOnly() && pkey != p.cfg.AdminKey {
		return p.finish(r, result.ErrUnauthorized, nil)
	}

	c := &call{pid: pid, cmd: cmd}
	switch cmd.Op {
	case tx.OpTick:
		p.tick(c)
		r.Events = c.log.Words()
		return p.finish(r, nil, nil)
	case tx.OpInstallPlayer:
		err = p.installPlayer(c)
	default:
		err = p.execute(c)
	}
	if err != nil {
		return p.finish(r, err, nil)
	}

	p.state.TxSize++
	p.state.TxCounter++
	r.Events = c.log.Words()
	return p.finish(r, nil, c.fill)
}

func (p *Processor) finish(r Receipt, err error, fill *Fill) Receipt {
	if err != nil {
		r.Code = result.CodeOf(err)
		r.Events = nil
	}
	r.Fill = fill
	r.Tick = p.state.Tick
	r.CorrelationID = p.state.Tick<<32 + p.state.TxCounter
	return r
}

// opcodeOf reads the opcode before decoding so that rejected transactions
// can still be attributed. Empty input reports an out-of-range opcode.
func opcodeOf(words []uint64) tx.Opcode {
	if len(words) == 0 {
		return tx.Opcode(0xff)
	}
	return tx.Opcode(words[0] & 0xff)
}

// call carries one transaction through its handler.
type call struct {
	pid  model.PlayerID
	acct model.Account // nonce already advanced
	cmd  tx.Command
	log  tx.Log
	fill *Fill
}

type handler func(p *Processor, c *call) error

var handlers = map[tx.Opcode]handler{
	tx.OpWithdraw:     (*Processor).withdraw,
	tx.OpDeposit:      (*Processor).deposit,
	tx.OpBet:          (*Processor).bet,
	tx.OpSell:         (*Processor).sell,
	tx.OpResolve:      (*Processor).resolve,
	tx.OpClaim:        (*Processor).claim,
	tx.OpWithdrawFees: (*Processor).withdrawFees,
	tx.OpCreateMarket: (*Processor).createMarket,
}

// execute runs an account-bound command. The nonce is consumed as soon
// as it checks out, whether or not the handler then succeeds.
func (p *Processor) execute(c *call) error {
	h, ok := handlers[c.cmd.Op]
	if !ok {
		return result.ErrInvalidCommand
	}
	acct, err := p.state.Accounts.Get(c.pid)
	if err != nil {
		return err
	}
	if acct, err = ledger.CheckAndIncNonce(acct, c.cmd.Nonce); err != nil {
		return err
	}
	p.state.Accounts.Put(c.pid, acct)
	c.acct = acct
	return h(p, c)
}

func (p *Processor) tick(c *call) {
	p.state.Tick++
	for _, id := range p.state.Markets.IDs() {
		m, err := p.state.Markets.Get(id)
		if err != nil {
			continue
		}
		c.log.Emit(tx.EventMarketUpdate, tx.MarketPayload(&m)...)
	}
}

func (p *Processor) installPlayer(c *call) error {
	total, err := safemath.Add(p.state.TotalPlayers, 1)
	if err != nil {
		return err
	}
	acct, err := p.state.Accounts.Install(c.pid, p.cfg.InitialBalance)
	if err != nil {
		return err
	}
	p.state.TotalPlayers = total
	c.log.Emit(tx.EventPlayerUpdate, tx.PlayerPayload(c.pid, acct)...)
	return nil
}
