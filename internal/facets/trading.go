package facets

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/routing"
)

const (
	TradingName      = "TradingFacet"
	TradingNamespace = "diamond.facet.trading"

	// InitialBalance is the account balance before the first trade.
	InitialBalance = 10000.0

	balanceKey     = "balance"
	positionPrefix = "position/"
)

// Trading revert reasons.
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonUnknownPosition     = "unknown position"
	ReasonInvalidTrade        = "invalid trade"
)

// Side is the direction of a position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// TradeArgs are the arguments of executeTrade(bytes).
type TradeArgs struct {
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
}

// CloseArgs are the arguments of closePosition(bytes). A zero ExitPrice
// closes at the entry price.
type CloseArgs struct {
	ID        string  `json:"id"`
	ExitPrice float64 `json:"exit_price"`
}

// Position is an open trade.
type Position struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	Caller string  `json:"caller"`
}

// Notional is the amount debited when the position was opened.
func (p Position) Notional() float64 {
	return p.Price * p.Size
}

// PnL is the profit of closing at exit.
func (p Position) PnL(exit float64) float64 {
	if p.Side == Sell {
		return (p.Price - exit) * p.Size
	}
	return (exit - p.Price) * p.Size
}

// TradeResult is the output of executeTrade.
type TradeResult struct {
	Status  string  `json:"status"`
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// CloseResult is the output of closePosition.
type CloseResult struct {
	Status  string  `json:"status"`
	ID      string  `json:"id"`
	PnL     float64 `json:"pnl"`
	Balance float64 `json:"balance"`
}

// BalanceResult is the output of balance().
type BalanceResult struct {
	Balance float64 `json:"balance"`
}

// Trading opens and closes positions against a single account balance.
type Trading struct {
	*methodSet
	ids IDGenerator
}

// NewTrading creates the trading facet. Position ids come from ids;
// nil means UUIDv7.
func NewTrading(ids IDGenerator) *Trading {
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	t := &Trading{ids: ids}
	t.methodSet = newMethodSet(TradingNamespace,
		method{"executeTrade(bytes)", t.executeTrade},
		method{"closePosition(bytes)", t.closePosition},
		method{"balance()", t.balance},
	)
	return t
}

func (t *Trading) executeTrade(ctx context.Context, c call) (any, error) {
	var args TradeArgs
	if err := decodeArgs(c, &args); err != nil {
		return nil, err
	}
	args.Side = Side(strings.ToUpper(string(args.Side)))
	if args.Symbol == "" || (args.Side != Buy && args.Side != Sell) ||
		!positive(args.Price) || !positive(args.Size) {
		return nil, ir.Revertf(ReasonInvalidTrade)
	}

	balance, err := loadBalance(ctx, c.space)
	if err != nil {
		return nil, err
	}
	pos := Position{
		ID:     t.ids.Generate(),
		Symbol: args.Symbol,
		Side:   args.Side,
		Price:  args.Price,
		Size:   args.Size,
		Caller: c.env.Call.Context.Caller.String(),
	}
	if pos.Notional() > balance {
		return nil, ir.Revertf(ReasonInsufficientBalance)
	}

	balance -= pos.Notional()
	if err := storeJSON(ctx, c.space, positionPrefix+pos.ID, pos); err != nil {
		return nil, err
	}
	if err := storeJSON(ctx, c.space, balanceKey, balance); err != nil {
		return nil, err
	}
	return TradeResult{Status: "Executed", ID: pos.ID, Balance: balance}, nil
}

func (t *Trading) closePosition(ctx context.Context, c call) (any, error) {
	var args CloseArgs
	if err := decodeArgs(c, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, ir.Revertf(ReasonUnknownPosition)
	}

	var pos Position
	ok, err := loadJSON(ctx, c.space, positionPrefix+args.ID, &pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ir.Revertf(ReasonUnknownPosition)
	}

	exit := args.ExitPrice
	if exit <= 0 {
		exit = pos.Price
	}
	balance, err := loadBalance(ctx, c.space)
	if err != nil {
		return nil, err
	}
	pnl := pos.PnL(exit)
	balance += pos.Notional() + pnl

	if err := c.space.Clear(ctx, positionPrefix+pos.ID); err != nil {
		return nil, err
	}
	if err := storeJSON(ctx, c.space, balanceKey, balance); err != nil {
		return nil, err
	}
	return CloseResult{Status: "Closed", ID: pos.ID, PnL: pnl, Balance: balance}, nil
}

func (t *Trading) balance(ctx context.Context, c call) (any, error) {
	balance, err := loadBalance(ctx, c.space)
	if err != nil {
		return nil, err
	}
	return BalanceResult{Balance: balance}, nil
}

func loadBalance(ctx context.Context, space *routing.Namespace) (float64, error) {
	balance := InitialBalance
	if _, err := loadJSON(ctx, space, balanceKey, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// OpenPositions reads every open position from the trading namespace,
// ordered by id.
func OpenPositions(ctx context.Context, space *routing.Namespace) ([]Position, error) {
	keys, err := space.Keys(ctx, positionPrefix)
	if err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(keys))
	for _, key := range keys {
		var pos Position
		if _, err := loadJSON(ctx, space, key, &pos); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })
	return positions, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
