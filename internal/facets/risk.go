package facets

import (
	"context"
)

const (
	RiskName      = "RiskFacet"
	RiskNamespace = "diamond.facet.risk"

	// DefaultMaxExposure is the exposure limit used when checkRisk is called
	// without one and none is configured.
	DefaultMaxExposure = 0.5

	maxExposureKey = "max_exposure"
)

// RiskArgs are the optional arguments of checkRisk(bytes).
type RiskArgs struct {
	MaxExposure float64 `json:"max_exposure"`
}

// RiskResult is the output of checkRisk.
type RiskResult struct {
	Safe      bool    `json:"safe"`
	Exposure  float64 `json:"exposure"`
	Positions int     `json:"positions"`
}

// Risk measures how much of the trading account is committed to open
// positions.
type Risk struct {
	*methodSet
}

// NewRisk creates the risk facet.
func NewRisk() *Risk {
	r := &Risk{}
	r.methodSet = newMethodSet(RiskNamespace,
		method{"checkRisk(bytes)", r.checkRisk},
	)
	return r
}

// checkRisk reports exposure = open notional / (balance + open notional).
// A limit passed in the arguments is remembered for later calls.
func (r *Risk) checkRisk(ctx context.Context, c call) (any, error) {
	var args RiskArgs
	if err := decodeArgs(c, &args); err != nil {
		return nil, err
	}

	limit := DefaultMaxExposure
	if _, err := loadJSON(ctx, c.space, maxExposureKey, &limit); err != nil {
		return nil, err
	}
	if args.MaxExposure > 0 {
		limit = args.MaxExposure
		if err := storeJSON(ctx, c.space, maxExposureKey, limit); err != nil {
			return nil, err
		}
	}

	trading, err := c.env.Storage.Namespace(TradingNamespace)
	if err != nil {
		return nil, err
	}
	positions, err := OpenPositions(ctx, trading)
	if err != nil {
		return nil, err
	}
	balance, err := loadBalance(ctx, trading)
	if err != nil {
		return nil, err
	}

	var notional float64
	for _, p := range positions {
		notional += p.Notional()
	}
	var exposure float64
	if total := balance + notional; total > 0 {
		exposure = notional / total
	}
	return RiskResult{Safe: exposure <= limit, Exposure: exposure, Positions: len(positions)}, nil
}
