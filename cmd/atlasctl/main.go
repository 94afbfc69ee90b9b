// atlasctl is an operator debugging aid: it classifies a query offline
// and prints the fingerprint and routing decision without calling any
// provider.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/router"
	"github.com/rentora-labs/atlas/internal/similarity"
	"github.com/rentora-labs/atlas/internal/types"
)

func main() {
	configDir := flag.String("config", "", "path to configuration directory (optional, defaults used when empty)")
	system := flag.String("system", "", "system prompt included in the fingerprint")
	location := flag.String("location", "", "location context")
	userID := flag.String("user", "", "user id context")
	negotiation := flag.Bool("negotiation", false, "active negotiation context")
	lease := flag.Bool("lease", false, "lease attached context")
	cheap := flag.Bool("prioritize-cost", false, "caller prefers the cheaper tier")
	tierOverride := flag.String("tier", "", "force a tier instead of routing (economy, long_context, top)")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: atlasctl [flags] <query text>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configDir != "" {
		loader := config.NewLoader(*configDir, slog.Default())
		if err := loader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loader.Config()
	}

	qctx := types.QueryContext{
		UserID:            *userID,
		Location:          *location,
		ActiveNegotiation: *negotiation,
		HasLeaseAttached:  *lease,
		PrioritizeCost:    *cheap,
	}

	selector := router.NewSelector(func() config.RoutingConfig { return cfg.Routing })
	cls := selector.Select(query, router.Classify(query, qctx), qctx)

	if *tierOverride != "" {
		tier, ok := types.ParseModelTier(*tierOverride)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown tier %q (want economy, long_context or top)\n", *tierOverride)
			os.Exit(1)
		}
		cls.RecommendedTier = tier
		cls.RecommendedModel = selector.ModelFor(tier)
		cls.EstimatedCostUSD = selector.CostFor(tier, query)
		cls.EstimatedSaved = 0
		if saved := selector.CostFor(types.TierTop, query) - cls.EstimatedCostUSD; saved > 0 {
			cls.EstimatedSaved = saved
		}
	}

	out := struct {
		Query          string                    `json:"query"`
		Fingerprint    string                    `json:"fingerprint"`
		Classification types.QueryClassification `json:"classification"`
	}{
		Query:          query,
		Fingerprint:    similarity.Fingerprint(query, *system, ""),
		Classification: cls,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
