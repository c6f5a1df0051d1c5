// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/db"
	"github.com/unclebandit/campaign-launch-api/internal/logger"
	"github.com/unclebandit/campaign-launch-api/internal/repository"
	"github.com/unclebandit/campaign-launch-api/internal/service"
)

type seedCampaign struct {
	name        string
	description string
	// stages to run after creation: 0 none, 1 validate, 2 validate+setup
	advance int
}

var seedCampaigns = []seedCampaign{
	{name: "Summer Sale", description: "Seasonal discount push", advance: 2},
	{name: "Loyalty Rewards", description: "Points for returning customers", advance: 1},
	{name: "Flash Deal", description: "Twelve hour offer"},
	{name: "Ad"},
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "seeder:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Options())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	conn, dialect, err := db.Open(ctx, db.Config{
		Driver:       cfg.DatabaseDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	svc := service.NewCampaignService(repository.NewCampaignRepository(conn, dialect))

	for _, s := range seedCampaigns {
		var description *string
		if s.description != "" {
			description = &s.description
		}
		c, err := svc.CreateCampaign(ctx, s.name, description)
		if err != nil {
			return fmt.Errorf("seed %q: %w", s.name, err)
		}
		if s.advance >= 1 {
			if _, err := svc.ValidateCampaign(ctx, c.ID); err != nil {
				return fmt.Errorf("validate %q: %w", s.name, err)
			}
		}
		if s.advance >= 2 {
			if _, err := svc.SetupCampaign(ctx, c.ID); err != nil {
				return fmt.Errorf("setup %q: %w", s.name, err)
			}
		}
		log.Info("seeded campaign", zap.Int("campaign_id", c.ID), zap.String("name", c.Name))
	}

	log.Info("database seeding completed", zap.Int("campaigns", len(seedCampaigns)))
	return nil
}
