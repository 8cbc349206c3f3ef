package contextengine

import (
	"context"
	"math"
	"sort"

	"github.com/docker/cv-index/internal/domain"
)

// localize implements spec.md §4.6 phase 6: when the snapshot exceeds
// TokenLimit, explicit files are kept intact, Symbols are ranked by
// combinedScore and greedily included under LocalizationSlop*TokenLimit,
// and Relationships are pruned to those whose endpoints both survive.
func (e *Engine) localize(ctx context.Context, snapshot domain.ContextSnapshot) domain.ContextSnapshot {
	var explicitFiles, otherFiles []domain.FileContext
	for _, f := range snapshot.Files {
		if f.Source == "explicit" {
			explicitFiles = append(explicitFiles, f)
		} else {
			otherFiles = append(otherFiles, f)
		}
	}

	budget := e.opts.LocalizationSlop
	if budget <= 0 {
		budget = 0.9
	}
	tokenBudget := budget * float64(e.opts.TokenLimit)

	used := float64(estimateTokens(domain.ContextSnapshot{Files: explicitFiles}))

	scored := make([]scoredSymbol, len(snapshot.Symbols))
	for i, s := range snapshot.Symbols {
		scored[i] = scoredSymbol{SymbolContext: s, combinedScore: combinedScore(s.RelevanceScore, e.centrality(ctx, s.Symbol.QualifiedName))}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].combinedScore > scored[j].combinedScore })

	var included []domain.SymbolContext
	keep := map[string]bool{}
	for _, s := range scored {
		cost := float64(estimateTokens(domain.ContextSnapshot{Symbols: []domain.SymbolContext{s.SymbolContext}}))
		if used+cost > tokenBudget {
			continue
		}
		used += cost
		included = append(included, s.SymbolContext)
		keep[s.Symbol.QualifiedName] = true
	}

	// Non-explicit files also compete for the remaining budget, least
	// essential first is not specified for files; keep the order they
	// arrived in (keyword-phase order reflects keyword relevance).
	var keptFiles []domain.FileContext
	for _, f := range otherFiles {
		cost := float64(estimateTokens(domain.ContextSnapshot{Files: []domain.FileContext{f}}))
		if used+cost > tokenBudget {
			continue
		}
		used += cost
		keptFiles = append(keptFiles, f)
	}

	var relationships []domain.Relationship
	for _, r := range snapshot.Relationships {
		if keep[r.From] && keep[r.To] {
			relationships = append(relationships, r)
		}
	}

	out := domain.ContextSnapshot{
		Files:         append(explicitFiles, keptFiles...),
		Symbols:       included,
		Relationships: relationships,
	}
	out.TokenCount = estimateTokens(out)
	return out
}

type scoredSymbol struct {
	domain.SymbolContext
	combinedScore float64
}

// combinedScore implements spec.md §4.6's
// combinedScore = 0.7*relevanceScore + 0.3*centrality.
func combinedScore(relevance, centrality float64) float64 {
	return 0.7*relevance + 0.3*centrality
}

// centrality implements spec.md §4.6's
// centrality = min(1, log1p(inDegree+outDegree)/10), 0 if graph unavailable.
func (e *Engine) centrality(ctx context.Context, qualifiedName string) float64 {
	if e.graph == nil {
		return 0
	}
	in, out, err := e.graph.Degree(ctx, qualifiedName)
	if err != nil {
		return 0
	}
	return math.Min(1, math.Log1p(float64(in+out))/10)
}
