package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-metrics"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/routing"
)

// CutAction is the kind of change a FacetCut makes.
type CutAction uint8

const (
	CutAdd CutAction = iota
	CutReplace
	CutRemove
)

// String returns the lowercase action name.
func (a CutAction) String() string {
	switch a {
	case CutAdd:
		return "add"
	case CutReplace:
		return "replace"
	case CutRemove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ParseCutAction parses add, replace or remove (case-insensitive).
func ParseCutAction(s string) (CutAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return CutAdd, nil
	case "replace":
		return CutReplace, nil
	case "remove":
		return CutRemove, nil
	default:
		return 0, fmt.Errorf("unknown cut action %q (want add, replace or remove)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a CutAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *CutAction) UnmarshalText(text []byte) error {
	parsed, err := ParseCutAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// FacetCut is one change to the routing table.
// Remove cuts carry the zero facet address.
type FacetCut struct {
	Action    CutAction     `json:"action"`
	Facet     ir.Address    `json:"facet"`
	Selectors []ir.Selector `json:"selectors"`
}

// Cut applies cuts in order within a single transaction.
//
// Each cut is validated against the table as left by the cuts before it.
// The first violation aborts the whole request with a *CutError and nothing
// is applied. Every applied selector change is appended to the history.
func (r *Router) Cut(ctx context.Context, cuts ...FacetCut) error {
	if len(cuts) == 0 {
		return &CutError{Code: ErrCodeEmptyCut, Message: "no cuts given"}
	}

	var applied []CutRecord
	err := r.update(ctx, func(tx kv.Tx) error {
		table := routing.NewTable(tx)
		for i, cut := range cuts {
			recs, err := applyCut(ctx, table, i, cut)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				if rec, err = appendHistory(ctx, tx, rec); err != nil {
					return err
				}
				applied = append(applied, rec)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.InfoContext(ctx, "cut rejected", "cuts", len(cuts), "error", err)
		return err
	}

	r.recordCuts(ctx, applied)
	return nil
}

func applyCut(ctx context.Context, table *routing.Table, idx int, cut FacetCut) ([]CutRecord, error) {
	if len(cut.Selectors) == 0 {
		return nil, &CutError{Code: ErrCodeEmptyCut, Message: "cut has no selectors", Index: idx}
	}

	switch cut.Action {
	case CutAdd, CutReplace:
		if cut.Facet.IsZero() {
			return nil, &CutError{Code: ErrCodeZeroFacet, Message: cut.Action.String() + " requires a facet address", Index: idx}
		}
	case CutRemove:
		if !cut.Facet.IsZero() {
			return nil, &CutError{Code: ErrCodeRemoveWithFacet, Message: "remove must use the zero facet address", Index: idx}
		}
	default:
		return nil, &CutError{Code: ErrCodeInvalidAction, Message: "unknown action " + cut.Action.String(), Index: idx}
	}

	recs := make([]CutRecord, 0, len(cut.Selectors))
	for _, sel := range cut.Selectors {
		current, present, err := table.Get(ctx, sel)
		if err != nil {
			return nil, err
		}

		switch cut.Action {
		case CutAdd:
			if present {
				return nil, &CutError{Code: ErrCodeSelectorExists, Message: "selector already routed to " + current.String(), Index: idx, Selector: sel}
			}
			err = table.Set(ctx, sel, cut.Facet)
		case CutReplace:
			if !present {
				return nil, &CutError{Code: ErrCodeSelectorMissing, Message: "cannot replace unrouted selector", Index: idx, Selector: sel}
			}
			if current == cut.Facet {
				return nil, &CutError{Code: ErrCodeSameFacet, Message: "selector already routed to this facet", Index: idx, Selector: sel}
			}
			err = table.Set(ctx, sel, cut.Facet)
		case CutRemove:
			if !present {
				return nil, &CutError{Code: ErrCodeSelectorMissing, Message: "cannot remove unrouted selector", Index: idx, Selector: sel}
			}
			err = table.Remove(ctx, sel)
		}
		if err != nil {
			return nil, err
		}

		recs = append(recs, CutRecord{
			Action:   cut.Action,
			Selector: sel,
			Facet:    cut.Facet,
			Previous: current,
		})
	}
	return recs, nil
}

// Set routes sel to facet, overwriting any existing route.
// Setting the route a selector already has changes nothing.
func (r *Router) Set(ctx context.Context, sel ir.Selector, facet ir.Address) error {
	var rec *CutRecord
	err := r.update(ctx, func(tx kv.Tx) error {
		table := routing.NewTable(tx)
		current, present, err := table.Get(ctx, sel)
		if err != nil {
			return err
		}
		if present && current == facet {
			return nil
		}
		if err := table.Set(ctx, sel, facet); err != nil {
			return err
		}

		action := CutAdd
		if present {
			action = CutReplace
		}
		appended, err := appendHistory(ctx, tx, CutRecord{Action: action, Selector: sel, Facet: facet, Previous: current})
		if err != nil {
			return err
		}
		rec = &appended
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", sel, err)
	}
	if rec != nil {
		r.recordCuts(ctx, []CutRecord{*rec})
	}
	return nil
}

// Remove deletes the route for sel. Removing an unrouted selector is a no-op.
func (r *Router) Remove(ctx context.Context, sel ir.Selector) error {
	var rec *CutRecord
	err := r.update(ctx, func(tx kv.Tx) error {
		table := routing.NewTable(tx)
		current, present, err := table.Get(ctx, sel)
		if err != nil || !present {
			return err
		}
		if err := table.Remove(ctx, sel); err != nil {
			return err
		}
		appended, err := appendHistory(ctx, tx, CutRecord{Action: CutRemove, Selector: sel, Previous: current})
		if err != nil {
			return err
		}
		rec = &appended
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", sel, err)
	}
	if rec != nil {
		r.recordCuts(ctx, []CutRecord{*rec})
	}
	return nil
}

// update runs fn in a write transaction, committing only if fn succeeds.
func (r *Router) update(ctx context.Context, fn func(tx kv.Tx) error) error {
	tx, err := r.backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// view runs fn in a transaction that is always rolled back.
func (r *Router) view(ctx context.Context, fn func(tx kv.Tx) error) error {
	tx, err := r.backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

func (r *Router) recordCuts(ctx context.Context, recs []CutRecord) {
	for _, rec := range recs {
		r.sink.IncrCounterWithLabels(MetricCutCount, 1, []metrics.Label{LabelAction.M(rec.Action.String())})
		r.logger.InfoContext(ctx, "route changed",
			"seq", rec.Seq,
			"action", rec.Action.String(),
			"selector", rec.Selector.String(),
			"facet", rec.Facet.String(),
			"previous", rec.Previous.String())
	}
}
