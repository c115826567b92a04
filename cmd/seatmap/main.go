// Renders the seat chart of one bus for one term to a PNG file. Handy for
// checking the renderer without going through the HTTP endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hredostate/yebo-transport/internal/config"
	"github.com/hredostate/yebo-transport/internal/repository"
	"github.com/hredostate/yebo-transport/internal/seatmap"
)

func main() {
	busID := flag.Int64("bus", 0, "bus id")
	termID := flag.Int64("term", 0, "term id")
	out := flag.String("out", "seatmap.png", "output file")
	flag.Parse()

	if *busID == 0 || *termID == 0 {
		log.Fatal("both -bus and -term are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	busRepo := repository.NewBusRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)

	bus, err := busRepo.GetByID(ctx, *busID)
	if err != nil {
		log.Fatalf("Failed to load bus: %v", err)
	}
	if bus == nil {
		log.Fatalf("Bus %d not found", *busID)
	}

	occupied, err := subRepo.OccupiedSeats(ctx, *busID, *termID)
	if err != nil {
		log.Fatalf("Failed to load occupancy: %v", err)
	}

	png, err := seatmap.Render(bus, occupied)
	if err != nil {
		log.Fatalf("Failed to render seat map: %v", err)
	}

	if err := os.WriteFile(*out, png, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	log.Printf("Wrote %s (%d bytes, %d seats occupied)", *out, len(png), len(occupied))
}
