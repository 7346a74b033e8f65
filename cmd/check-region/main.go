package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/paulmach/orb"
)

var (
	lat = flag.Float64("lat", 0, "Latitude to resolve (required)")
	lng = flag.Float64("lng", 0, "Longitude to resolve (required)")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *lat == 0 && *lng == 0 {
		log.Fatal("--lat and --lng are required")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	specs, err := regions.SpecsFromConfig(cfg.Tiers)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	idx := regions.NewIndex(regions.Municipality{Name: cfg.Municipality.Name, Prefecture: cfg.Municipality.Prefecture})
	if err := idx.Load(ctx, specs); err != nil {
		var le *regions.LoadError
		if errors.As(err, &le) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			log.Fatalf("load error: %v", err)
		}
	}

	fmt.Printf("Boundaries for %s:\n", cfg.Municipality.Name)
	for _, st := range idx.Status() {
		if st.Error != "" {
			fmt.Printf("  %-12s failed: %s\n", st.Tier, st.Error)
			continue
		}
		fmt.Printf("  %-12s %d features\n", st.Tier, st.Features)
	}
	fmt.Println()

	region, ok := idx.Resolve(orb.Point{*lng, *lat})
	if !ok {
		fmt.Printf("(%.6f, %.6f) is outside every neighborhood; posts here are tagged %s only\n", *lat, *lng, cfg.Municipality.Name)
		return
	}
	fmt.Printf("(%.6f, %.6f) → %s\n", *lat, *lng, region.Label())
	fmt.Printf("  city:         %s\n", region.City)
	fmt.Printf("  ward:         %s\n", region.Ward)
	fmt.Printf("  neighborhood: %s\n", region.Neighborhood)
}
