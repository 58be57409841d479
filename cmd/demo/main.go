// Command demo plays synthetic negotiations against an in-process
// marketplace and prints the run statistics. Useful for eyeballing the
// negotiation engine without standing up the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rentchain.org/internal/anchor"
	"rentchain.org/internal/market"
	"rentchain.org/internal/sim"
)

func main() {
	log.SetFlags(0)
	var (
		seed   = flag.Int64("seed", 0, "random seed (0 = time-based)")
		rounds = flag.Int("rounds", 10, "max counter-offer rounds per negotiation")
		runs   = flag.Int("runs", 1, "number of scenario runs")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	anchors := anchor.NewSimulated()
	svc := market.NewService(market.NewMemStore(), anchors, anchors)

	enc := json.NewEncoder(os.Stdout)
	for i := 0; i < *runs; i++ {
		gen := sim.NewGenerator(*seed + int64(i))
		stats, err := sim.Run(ctx, svc, gen, *rounds)
		if err != nil {
			log.Fatalf("run %d: %v", i+1, err)
		}
		if err := enc.Encode(map[string]any{
			"run":      i + 1,
			"scenario": gen.Scenario().Name,
			"stats":    stats,
		}); err != nil {
			log.Fatalf("encode stats: %v", err)
		}
	}
	fmt.Fprintln(os.Stderr, "demo complete")
}
