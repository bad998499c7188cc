// Seeds a development database with a few people, catalog items and copies.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/app"
	"github.com/openshelf/openshelf/internal/platform/db"
)

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	people := []struct {
		name  string
		email string
	}{
		{"Ada Reyes", "ada@example.test"},
		{"Tomas Lindqvist", "tomas@example.test"},
		{"Mei Okafor", "mei@example.test"},
	}
	for _, p := range people {
		if _, err := pool.Exec(ctx,
			`INSERT INTO people (name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			p.name, p.email); err != nil {
			logger.Error("seed person", slog.Any("error", err))
			os.Exit(1)
		}
	}

	items := []struct {
		title    string
		category string
		copies   int
	}{
		{"The Go Programming Language", "book", 3},
		{"Journal of Systems Research Vol. 12", "journal", 1},
		{"Distributed Consensus in Practice", "thesis", 2},
	}
	for _, item := range items {
		var itemID int64
		if err := pool.QueryRow(ctx,
			`INSERT INTO catalog_items (title, category) VALUES ($1, $2) RETURNING id`,
			item.title, item.category).Scan(&itemID); err != nil {
			logger.Error("seed catalog item", slog.Any("error", err))
			os.Exit(1)
		}
		for i := 0; i < item.copies; i++ {
			if _, err := pool.Exec(ctx,
				`INSERT INTO copies (catalog_item_id, barcode) VALUES ($1, $2)`,
				itemID, uuid.NewString()); err != nil {
				logger.Error("seed copy", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	fmt.Println("seed complete")
}
