// Package optimize removes cascade-redundant declarations and rules from a
// stylesheet tree and merges near-duplicate adjacent rules.
package optimize

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cssprune/css"
)

// Stats summarizes what single optimization run did.
type Stats struct {
	RulesBefore        int
	RulesAfter         int
	DeclarationsBefore int
	DeclarationsAfter  int
	ForwardRemoved     int // declarations overridden by earlier !important
	BackwardRemoved    int // declarations overridden later in the stream
	Merges             int
	RulesRemoved       int
	GroupsRemoved      int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("rules_before", s.RulesBefore)
	enc.AddInt("rules_after", s.RulesAfter)
	enc.AddInt("declarations_before", s.DeclarationsBefore)
	enc.AddInt("declarations_after", s.DeclarationsAfter)
	enc.AddInt("forward_removed", s.ForwardRemoved)
	enc.AddInt("backward_removed", s.BackwardRemoved)
	enc.AddInt("merges", s.Merges)
	enc.AddInt("rules_removed", s.RulesRemoved)
	enc.AddInt("groups_removed", s.GroupsRemoved)
	return nil
}

// Add accumulates other run statistics.
func (s *Stats) Add(o *Stats) {
	s.RulesBefore += o.RulesBefore
	s.RulesAfter += o.RulesAfter
	s.DeclarationsBefore += o.DeclarationsBefore
	s.DeclarationsAfter += o.DeclarationsAfter
	s.ForwardRemoved += o.ForwardRemoved
	s.BackwardRemoved += o.BackwardRemoved
	s.Merges += o.Merges
	s.RulesRemoved += o.RulesRemoved
	s.GroupsRemoved += o.GroupsRemoved
}

func (s *Stats) String() string {
	return fmt.Sprintf("rules %d -> %d, declarations %d -> %d, merges %d",
		s.RulesBefore, s.RulesAfter, s.DeclarationsBefore, s.DeclarationsAfter, s.Merges)
}

// Run optimizes sheet in place. Every group (at-rule block or stylesheet
// root) is processed as an independent rule stream. Sweeps are repeated
// until the tree stops changing, rules created by merging in one sweep take
// part in the comparisons of the next one. On error the tree may be
// partially modified.
func Run(sheet *css.Stylesheet, log *zap.Logger) (*Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p := &pass{
		log:       log.Named("optimize"),
		selectors: make(map[string]SelectorSet),
		stats: &Stats{
			RulesBefore:        len(sheet.Rules()),
			DeclarationsBefore: sheet.CountDeclarations(),
		},
	}
	groupsBefore := len(sheet.Root.Groups())

	rules, decls := p.stats.RulesBefore, p.stats.DeclarationsBefore
	for sweep := 1; ; sweep++ {
		// groups emptied during the sweep are detached, list is taken upfront
		for _, g := range sheet.Root.Groups() {
			if err := p.stream(g); err != nil {
				return nil, err
			}
		}
		reap(sheet.Root, p.stats)

		r, d := len(sheet.Rules()), sheet.CountDeclarations()
		p.log.Debug("Sweep done", zap.Int("sweep", sweep), zap.Int("rules", r), zap.Int("declarations", d))
		if r == rules && d == decls {
			break
		}
		rules, decls = r, d
	}

	p.stats.GroupsRemoved = groupsBefore - len(sheet.Root.Groups())
	p.stats.RulesAfter = rules
	p.stats.DeclarationsAfter = decls

	p.log.Debug("Stylesheet optimized", zap.Object("stats", p.stats))
	return p.stats, nil
}
