// Package router classifies queries and routes each one to the cheapest
// model tier that still meets its accuracy bar, escalating through more
// capable tiers on upstream failure.
package router

import (
	"strings"

	"github.com/rentora-labs/atlas/internal/similarity"
	"github.com/rentora-labs/atlas/internal/types"
)

// shortPromptThreshold is the length under which a query defaults to
// simple unless a complex-domain keyword overrides it.
const shortPromptThreshold = 50

// longPromptThreshold is the length above which a query is treated as
// complex on size alone.
const longPromptThreshold = 400

// Classify derives complexity, domain and accuracy requirements for a query.
// It is a pure function over the query text and conversational context;
// ambiguity is never an error and falls back to the safest bucket.
func Classify(query string, qctx types.QueryContext) types.QueryClassification {
	norm := similarity.Normalize(query)

	domain, domainMatches := classifyDomain(norm)
	complexity, complexityMatches := classifyComplexity(norm, domain)
	accuracy := classifyAccuracy(norm, domain, complexity, qctx)

	return types.QueryClassification{
		Complexity: complexity,
		Domain:     domain,
		Accuracy:   accuracy,
		Confidence: classificationConfidence(domainMatches + complexityMatches),
	}
}

func classifyDomain(norm string) (types.Domain, int) {
	best := types.DomainGeneral
	bestMatches := 0
	for _, fam := range domainFamilies {
		matches := 0
		for _, kw := range fam.Keywords {
			if strings.Contains(norm, kw) {
				matches++
			}
		}
		if matches > bestMatches {
			best = fam.Domain
			bestMatches = matches
		}
	}
	return best, bestMatches
}

func classifyComplexity(norm string, domain types.Domain) (types.Complexity, int) {
	matches := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(norm, kw) {
			matches++
		}
	}

	// Size and keyword evidence are judged independently; the harder
	// verdict wins.
	byLength := types.ComplexityModerate
	switch {
	case len(norm) > longPromptThreshold:
		byLength = types.ComplexityComplex
	case len(norm) < shortPromptThreshold && !complexDomains[domain]:
		byLength = types.ComplexitySimple
	}

	byKeywords := types.ComplexitySimple
	if matches > 0 {
		byKeywords = types.ComplexityComplex
	}

	if byKeywords.Level() > byLength.Level() {
		return byKeywords, matches
	}
	return byLength, matches
}

func classifyAccuracy(norm string, domain types.Domain, complexity types.Complexity, qctx types.QueryContext) types.Accuracy {
	acc := types.AccuracyLow
	if complexity == types.ComplexityComplex {
		acc = raiseAccuracy(acc, types.AccuracyMedium)
	}
	if qctx.ActiveNegotiation {
		if domain == types.DomainNegotiation {
			acc = raiseAccuracy(acc, types.AccuracyHigh)
		} else {
			acc = raiseAccuracy(acc, types.AccuracyMedium)
		}
	}
	if domain == types.DomainLegal || qctx.HasLeaseAttached {
		acc = raiseAccuracy(acc, types.AccuracyHigh)
	}
	for _, cue := range highAccuracyCues {
		if strings.Contains(norm, cue) {
			acc = raiseAccuracy(acc, types.AccuracyHigh)
			break
		}
	}
	return acc
}

// raiseAccuracy keeps the stricter of the two requirements.
func raiseAccuracy(current, candidate types.Accuracy) types.Accuracy {
	if candidate.Level() > current.Level() {
		return candidate
	}
	return current
}

// classificationConfidence grows with keyword evidence: an unmatched query
// is a low-confidence general guess, a heavily matched query is near-certain.
func classificationConfidence(matches int) float64 {
	conf := 0.5 + 0.1*float64(matches)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
