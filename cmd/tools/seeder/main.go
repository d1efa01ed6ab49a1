package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/db"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

const (
	demoEmail    = "owner@example.com"
	demoName     = "Demo Owner"
	demoPassword = "password123"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "seeder").Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := db.Connect(ctx, dbURL, "seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	owner, err := seedOwner(ctx, repo.UsersRepo{DB: pool})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed owner")
	}
	logger.Info().Str("owner_id", owner.ID).Str("email", owner.Email).Msg("owner ready")

	ctx = common.WithUserID(ctx, owner.ID)
	if err := seedSettings(ctx, repo.SettingsRepo{DB: pool}); err != nil {
		logger.Fatal().Err(err).Msg("seed settings")
	}
	items, err := seedItems(ctx, repo.ItemsRepo{DB: pool})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed items")
	}
	customers, err := seedCustomers(ctx, repo.CustomersRepo{DB: pool})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed customers")
	}
	logger.Info().Int("items", items).Int("customers", customers).Msg("seeding completed")
}

func seedOwner(ctx context.Context, users repo.UsersRepo) (repo.User, error) {
	u, err := users.ByEmail(ctx, demoEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.User{}, err
	}
	hash, err := argon2id.CreateHash(demoPassword, argon2id.DefaultParams)
	if err != nil {
		return repo.User{}, err
	}
	return users.Create(ctx, demoEmail, demoName, hash)
}

func seedSettings(ctx context.Context, settings repo.SettingsRepo) error {
	s := repo.DefaultSettings()
	s.StoreName = "Lakshmi Jewellers"
	s.GSTNumber = "27ABCDE1234F1Z5"
	s.Address = "14 Zaveri Bazaar, Mumbai"
	s.Phone = "+91 22 5550 1234"
	_, err := settings.Upsert(ctx, s)
	return err
}

func seedItems(ctx context.Context, items repo.ItemsRepo) (int, error) {
	dec := decimal.RequireFromString
	seed := []repo.Item{
		{Name: "Temple Necklace", SKU: "NK-001", MetalType: "Gold", Purity: "22K", GrossWeight: dec("42.500"), NetWeight: dec("40.100"), MakingCharge: dec("8500"), Quantity: 3},
		{Name: "Bridal Bangles (pair)", SKU: "BG-014", MetalType: "Gold", Purity: "22K", GrossWeight: dec("31.200"), NetWeight: dec("30.000"), MakingCharge: dec("6200"), Quantity: 6},
		{Name: "Solitaire Ring", SKU: "RG-102", MetalType: "Gold", Purity: "18K", GrossWeight: dec("4.800"), NetWeight: dec("4.200"), MakingCharge: dec("3500"), Quantity: 2},
		{Name: "Jhumka Earrings", SKU: "ER-027", MetalType: "Gold", Purity: "22K", GrossWeight: dec("9.600"), NetWeight: dec("9.100"), MakingCharge: dec("2100"), Quantity: 12},
		{Name: "Anklet Set", SKU: "AK-003", MetalType: "Silver", Purity: "925", GrossWeight: dec("58.000"), NetWeight: dec("56.000"), MakingCharge: dec("900"), Quantity: 20},
		{Name: "Puja Thali", SKU: "SV-210", MetalType: "Silver", Purity: "999", GrossWeight: dec("210.000"), NetWeight: dec("205.000"), MakingCharge: dec("1800"), Quantity: 1},
	}
	created := 0
	for _, it := range seed {
		_, err := items.Create(ctx, it)
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func seedCustomers(ctx context.Context, customers repo.CustomersRepo) (int, error) {
	existing, err := customers.All(ctx)
	if err != nil || len(existing) > 0 {
		return 0, err
	}
	seed := []repo.Customer{
		{Name: "Priya Sharma", Phone: "9820012345", Email: "priya@example.com", Address: "Andheri West, Mumbai", Tags: []string{"vip"}},
		{Name: "Rahul Mehta", Phone: "9820098765", Address: "Dadar, Mumbai"},
		{Name: "Anita Desai", Phone: "9811122233", Email: "anita@example.com", Notes: "Prefers antique finish", Tags: []string{"wedding"}},
	}
	created := 0
	for _, c := range seed {
		if _, err := customers.Create(ctx, c); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
