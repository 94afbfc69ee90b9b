// Package similarity provides the text normalization, fingerprinting and
// token-set comparison primitives shared by the cache, dedup and embedding
// layers. Everything here is a pure function over its inputs.
package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. Two prompts that normalize identically are treated as the same
// prompt everywhere in the orchestrator.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Fingerprint computes the deterministic cache/dedup key for a request:
// a sha256 over the normalized prompt, system prompt and model id.
func Fingerprint(prompt, systemPrompt, model string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(systemPrompt)))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}

// TokenSet returns the set of normalized whitespace-delimited tokens in s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes token-set Jaccard similarity between two texts.
// Returns 1 when both are empty, 0 when exactly one is empty.
func Jaccard(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// EstimateTokens approximates the token count of a prompt as len/4.
// This is an analytics signal, not a billing source of truth.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}
