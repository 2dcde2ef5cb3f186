package optimize

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"cssprune/css"
)

// pass carries state of a single optimization run.
type pass struct {
	log       *zap.Logger
	selectors map[string]SelectorSet // keyed by selector text
	stats     *Stats
}

// selectorSet normalizes selector of the rule. Results are memoized by
// selector text so they cannot go stale when rules change.
func (p *pass) selectorSet(r *css.Rule) (SelectorSet, error) {
	if set, ok := p.selectors[r.Selector]; ok {
		return set, nil
	}
	set, err := Normalize(r.Selector)
	if err != nil {
		return nil, fmt.Errorf("rule at %s: %w", r.Pos, err)
	}
	p.selectors[r.Selector] = set
	return set, nil
}

// remove detaches rule left without declarations.
func (p *pass) remove(r *css.Rule, reason string) {
	p.log.Debug("Removing empty rule", zap.String("selector", r.Selector), zap.Stringer("pos", r.Pos), zap.String("reason", reason))
	r.Detach()
	p.stats.RulesRemoved++
}

// stream runs redundancy elimination over direct child rules of g. Rules
// created by merging are placed before their origin and never revisited.
func (p *pass) stream(g *css.Group) error {
	rules := g.Rules()
	slices.SortStableFunc(rules, func(a, b *css.Rule) int {
		switch {
		case a.Pos.Before(b.Pos):
			return -1
		case b.Pos.Before(a.Pos):
			return 1
		}
		return 0
	})

	for i, origin := range rules {
		if origin.Parent() == nil {
			// removed while being a candidate
			continue
		}
		if err := p.visit(origin, rules[i+1:]); err != nil {
			return err
		}
	}
	return nil
}

// visit compares origin against every later rule of the stream.
func (p *pass) visit(origin *css.Rule, later []*css.Rule) error {
	originSel, err := p.selectorSet(origin)
	if err != nil {
		return err
	}
	originProps := gatherProperties(origin)
	if len(originProps) == 0 {
		p.remove(origin, "empty")
		return nil
	}

	// adjacency is lost as soon as any rule survives after origin
	adjacent := true
	for _, cand := range later {
		if cand.Parent() == nil || !origin.Pos.Before(cand.Pos) {
			continue
		}
		candSel, err := p.selectorSet(cand)
		if err != nil {
			return err
		}

		if adjacent {
			next := origin.Parent().NextRule(origin)
			adjacent = next != nil
			if cand == next {
				merged, err := p.merge(origin, originSel, originProps, cand, candSel)
				if err != nil {
					return err
				}
				if merged {
					originProps = gatherProperties(origin)
				}
			}
		}

		p.forward(originSel, originProps, cand, candSel)
		p.backward(origin, originSel, originProps, cand, candSel)

		if cand.IsEmpty() {
			p.remove(cand, "overridden")
		} else {
			adjacent = false
		}
		if origin.IsEmpty() {
			p.remove(origin, "overridden")
			break
		}
	}
	return nil
}

// forward drops candidate declarations which lose to !important ones of
// the origin covering all candidate selectors.
func (p *pass) forward(originSel SelectorSet, originProps PropertyTable, cand *css.Rule, candSel SelectorSet) {
	if !IsSuperset(originSel, candSel) {
		return
	}
	n := cand.RemoveIf(func(d css.Declaration) bool {
		e, ok := originProps[d.Property]
		return ok && e.Important && !d.Important
	})
	if n > 0 {
		p.log.Debug("Forward redundancy", zap.String("selector", cand.Selector), zap.Stringer("pos", cand.Pos), zap.Int("removed", n))
		p.stats.ForwardRemoved += n
	}
}

// backward drops origin declarations re-declared by candidate covering all
// origin selectors, unless origin wins by importance.
func (p *pass) backward(origin *css.Rule, originSel SelectorSet, originProps PropertyTable, cand *css.Rule, candSel SelectorSet) {
	if !IsSuperset(candSel, originSel) {
		return
	}
	for _, d := range cand.Declarations {
		e, ok := originProps[d.Property]
		if !ok || e.Important && !d.Important {
			continue
		}
		n := origin.RemoveProperty(d.Property)
		delete(originProps, d.Property)
		p.log.Debug("Backward redundancy",
			zap.String("selector", origin.Selector),
			zap.String("property", d.Property),
			zap.Stringer("pos", origin.Pos),
			zap.Stringer("overridden-at", cand.Pos))
		p.stats.BackwardRemoved += n
	}
}
