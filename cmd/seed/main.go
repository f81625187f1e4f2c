package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/backoffice/internal/auth"
	"github.com/kiwari-pos/backoffice/internal/config"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/enum"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type seedVariant struct {
	name  string
	price string
}

type seedItem struct {
	name     string
	price    string
	variants []seedVariant
	addons   []seedVariant
}

var demoMenu = []seedItem{
	{
		name:  "Jollof Rice",
		price: "3500",
		variants: []seedVariant{
			{"Regular", "3500"},
			{"Large", "4800"},
		},
		addons: []seedVariant{
			{"Extra Chicken", "1500"},
			{"Fried Plantain", "700"},
		},
	},
	{
		name:  "Fried Rice",
		price: "3500",
		addons: []seedVariant{
			{"Extra Chicken", "1500"},
			{"Coleslaw", "500"},
		},
	},
	{name: "Peppered Turkey", price: "4200"},
	{name: "Chapman", price: "1800"},
}

func main() {
	branch := flag.String("branch", "", "Branch ID to seed (random when empty)")
	role := flag.String("role", enum.UserRoleOwner, "Role of the printed dev token")
	ttl := flag.Duration("ttl", 24*time.Hour, "Lifetime of the printed dev token")
	migrate := flag.Bool("migrate", true, "Apply migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.NewConsoleWriter())
		boot.Fatal().Err(err).Msg("load config")
	}
	cfg.Logger.Format = "console"
	logger := config.NewLogger(cfg.Logger)

	branchID := uuid.New()
	if *branch != "" {
		if branchID, err = uuid.Parse(*branch); err != nil {
			logger.Fatal().Err(err).Msg("invalid -branch")
		}
	}

	if *migrate {
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, 2, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	// Seed in a transaction: the whole menu or nothing.
	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, item := range demoMenu {
		if err := seedMenuItem(ctx, tx, branchID, item, logger); err != nil {
			logger.Fatal().Err(err).Str("item", item.name).Msg("seed menu item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Fatal().Err(err).Msg("commit")
	}

	token, err := auth.GenerateTokenWithTTL(cfg.JWTSecret, uuid.New(), branchID, *role, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate token")
	}

	logger.Info().Str("branch_id", branchID.String()).Msg("seed completed")
	fmt.Printf("BRANCH_ID=%s\nTOKEN=%s\n", branchID, token)
}

// seedMenuItem creates item with its variants and add-ons unless an active
// item with the same name already exists in the branch.
func seedMenuItem(ctx context.Context, tx pgx.Tx, branchID uuid.UUID, item seedItem, logger zerolog.Logger) error {
	var existingID uuid.UUID
	checkSQL := `SELECT id FROM menu_items WHERE branch_id = $1 AND name = $2 AND is_active = true LIMIT 1`
	err := tx.QueryRow(ctx, checkSQL, branchID, item.name).Scan(&existingID)
	if err == nil {
		logger.Info().Str("item", item.name).Str("id", existingID.String()).Msg("menu item exists, skipping")
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check menu item: %w", err)
	}

	q := database.New(tx)
	mi, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
		BranchID:  branchID,
		Name:      item.name,
		BasePrice: database.DecimalToNumeric(decimal.RequireFromString(item.price)),
	})
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}

	for i, v := range item.variants {
		if _, err := q.CreateMenuItemVariant(ctx, database.CreateMenuItemVariantParams{
			MenuItemID: mi.ID,
			Name:       v.name,
			Price:      database.DecimalToNumeric(decimal.RequireFromString(v.price)),
			SortOrder:  int32(i),
		}); err != nil {
			return fmt.Errorf("insert variant %s: %w", v.name, err)
		}
	}
	for _, a := range item.addons {
		if _, err := q.CreateMenuItemAddon(ctx, database.CreateMenuItemAddonParams{
			MenuItemID: mi.ID,
			Name:       a.name,
			Price:      database.DecimalToNumeric(decimal.RequireFromString(a.price)),
		}); err != nil {
			return fmt.Errorf("insert addon %s: %w", a.name, err)
		}
	}

	logger.Info().Str("item", item.name).Str("id", mi.ID.String()).Msg("created menu item")
	return nil
}
