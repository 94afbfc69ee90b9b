package router

import "github.com/rentora-labs/atlas/internal/types"

// keywordFamily maps trigger keywords to a domain. Families are evaluated
// in order; the family with the most matches wins, ties going to the
// earlier family.
type keywordFamily struct {
	Domain   types.Domain
	Keywords []string
}

// domainFamilies are the built-in domain classification tables. Pattern
// data lives here, not scattered through the classifier, so tests can
// exercise the classification function as a pure function.
var domainFamilies = []keywordFamily{
	{
		Domain: types.DomainLegal,
		Keywords: []string{
			"lease", "legal", "law", "clause", "eviction", "contract",
			"rights", "liability", "sublet", "security deposit", "landlord-tenant",
		},
	},
	{
		Domain: types.DomainNegotiation,
		Keywords: []string{
			"negotiate", "negotiation", "counteroffer", "counter-offer",
			"strategy", "leverage", "concession", "renewal offer",
		},
	},
	{
		Domain: types.DomainMarketAnalysis,
		Keywords: []string{
			"market", "rent", "price", "pricing", "trend", "trends",
			"comps", "comparable", "vacancy", "average", "median",
		},
	},
	{
		Domain: types.DomainCalculation,
		Keywords: []string{
			"calculate", "how much", "afford", "budget", "percent",
			"percentage", "per month", "total cost", "prorate",
		},
	},
}

// complexityKeywords force at least complex classification regardless of
// prompt length.
var complexityKeywords = []string{
	"analyze", "analysis", "compare", "comparison", "comprehensive",
	"detailed", "in detail", "summarize", "evaluate", "forecast",
	"pros and cons", "trade-off", "tradeoff", "multi-year",
}

// highAccuracyCues are explicit signals that the answer must not cut
// corners on correctness.
var highAccuracyCues = []string{
	"legal", "important", "critical", "exact", "accurate", "precisely",
	"binding", "official",
}

// complexDomains always override the short-prompt simple default.
var complexDomains = map[types.Domain]bool{
	types.DomainLegal:       true,
	types.DomainNegotiation: true,
}
