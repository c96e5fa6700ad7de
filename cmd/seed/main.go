// seed replaces the sweets collection with a small starter catalogue.
//
// Usage: go run ./cmd/seed
// Reads the same MONGO_* variables as the API.
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/infrastructure/config"
	"github.com/ss-345/sweet-shop/internal/infrastructure/db/mongo"
	"github.com/ss-345/sweet-shop/pkg/logger"
)

type seedSweet struct {
	name     string
	category string
	price    int64
	quantity int
}

var catalogue = []seedSweet{
	{name: "Gulab Jamun", category: "Indian", price: 5, quantity: 20},
	{name: "Rasgulla", category: "Indian", price: 4, quantity: 15},
	{name: "Barfi", category: "Indian", price: 6, quantity: 12},
	{name: "Jalebi", category: "Indian", price: 3, quantity: 25},
}

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "sweet-shop-seed"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect to mongodb")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := mongo.NewSweetRepository(db)
	removed, err := repo.DeleteAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("clear sweets")
	}
	log.Info().Int64("removed", removed).Msg("sweets cleared")

	for _, s := range catalogue {
		now := time.Now().UTC()
		created, err := repo.Create(ctx, &domain.Sweet{
			Name:      s.name,
			Category:  s.category,
			Price:     decimal.NewFromInt(s.price),
			Quantity:  s.quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			log.Fatal().Err(err).Str("name", s.name).Msg("insert sweet")
		}
		log.Info().Str("id", created.ID).Str("name", created.Name).Msg("sweet seeded")
	}
	log.Info().Int("count", len(catalogue)).Msg("seed complete")
}
