package optimize

import (
	"go.uber.org/zap"

	"cssprune/css"
)

// merge moves declarations shared by two adjacent rules into a new rule
// placed before origin when the overlap is large enough. Returns true if
// the merge happened.
func (p *pass) merge(origin *css.Rule, originSel SelectorSet, originProps PropertyTable, cand *css.Rule, candSel SelectorSet) (bool, error) {
	// rules with empty selector sets do not take part in comparisons
	if len(originSel) == 0 || len(candSel) == 0 {
		return false, nil
	}
	candProps := gatherProperties(cand)
	if len(originProps) == 0 || len(candProps) == 0 {
		return false, nil
	}
	threshold := max(len(originProps), len(candProps)) / 2
	if threshold == 0 {
		return false, nil
	}
	shared := sharedProperties(origin, originProps, candProps)
	if len(shared) < threshold {
		return false, nil
	}

	merged := &css.Rule{
		Selector:     originSel.Union(candSel).String(),
		Declarations: make([]css.Declaration, 0, len(shared)),
		Pos:          origin.Pos,
	}
	for _, name := range shared {
		e := originProps[name]
		merged.Declarations = append(merged.Declarations, css.Declaration{Property: name, Value: e.Value, Important: e.Important})
		origin.RemoveProperty(name)
		cand.RemoveProperty(name)
	}
	if err := origin.Parent().InsertBefore(origin, merged); err != nil {
		return false, err
	}

	p.log.Debug("Merged adjacent rules",
		zap.String("origin", origin.Selector),
		zap.String("candidate", cand.Selector),
		zap.String("merged", merged.Selector),
		zap.Int("declarations", len(shared)),
		zap.Stringer("pos", origin.Pos))
	p.stats.Merges++
	return true, nil
}
