// stock-rebuild recomputes cached product stock from the stock movements
// ledger for one business. Run with --check-only to report drift without
// writing anything.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/stock-rebuild --business-id <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	checkOnly := flag.Bool("check-only", false, "Report drift without repairing the cache")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), strings.TrimSpace(*businessID))
	ctx = utils.SetUserNameInContext(ctx, "StockRebuild")

	drifts, err := workflow.CheckStockConsistency(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "consistency check failed: %v\n", err)
		os.Exit(1)
	}
	if len(drifts) == 0 {
		fmt.Println("stock cache is consistent with the ledger; nothing to do")
		return
	}
	for _, d := range drifts {
		fmt.Printf("product %d (%s): cached=%s ledger=%s\n", d.ProductId, d.Sku, d.CachedStock, d.LedgerStock)
	}
	if *checkOnly {
		fmt.Printf("%d product(s) drifted (check-only; not repaired)\n", len(drifts))
		os.Exit(2)
	}

	repaired, err := workflow.RebuildStockCache(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("repaired %d product(s) from the ledger\n", repaired)
}
