package migrations

import (
	"context"
	"errors"
	"fmt"

	"delivery_ops/internal/database"
	"delivery_ops/internal/models"
	"delivery_ops/internal/repository"
	"delivery_ops/internal/services"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Options controls the default data created after the schema is migrated.
type Options struct {
	AdminUsername string
	AdminPassword string
	SeedDemoData  bool
}

// RunMigrations brings the schema up to date and creates default data.
// Existing tables are never dropped.
func RunMigrations(db *gorm.DB, opts Options) error {
	log.Info().Str("action", "migrations_started").Msg("Running database migrations")

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createDefaultData(db, opts); err != nil {
		log.Warn().Err(err).Str("action", "seed_failed").Msg("Failed to create default data")
	}

	log.Info().Str("action", "migrations_completed").Msg("Database migrations completed")
	return nil
}

// createDefaultData creates the admin account and, optionally, a demo agent
func createDefaultData(db *gorm.DB, opts Options) error {
	ctx := context.Background()
	userService := services.NewUserService(repository.NewUserRepository(db))

	_, err := userService.GetUserByUsername(ctx, opts.AdminUsername)
	switch {
	case err == nil:
		log.Info().Str("action", "seed_skipped").Str("username", opts.AdminUsername).Msg("Admin user already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin := &models.User{
			Username: opts.AdminUsername,
			Role:     string(models.SuperAdmin),
			IsActive: true,
		}
		if err := userService.CreateUser(ctx, admin, opts.AdminPassword); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		log.Info().Str("action", "admin_created").Str("username", admin.Username).Msg("Admin user created")
	default:
		return err
	}

	if !opts.SeedDemoData {
		return nil
	}

	agents := repository.NewAgentRepository(db)
	var count int64
	if err := db.Model(&models.Agent{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	village := &models.Village{Name: "Kampung Baru"}
	route := &models.Route{Name: "North Loop"}
	if err := agents.CreateVillage(ctx, village); err != nil {
		return err
	}
	if err := agents.CreateRoute(ctx, route); err != nil {
		return err
	}
	agent := &models.Agent{
		Name:           "Demo Agent",
		Mobile:         "081234567890",
		WhatsAppNumber: "6281234567890",
		VillageID:      village.ID,
		RouteID:        route.ID,
		IsActive:       true,
	}
	if err := agents.Create(ctx, agent); err != nil {
		return err
	}
	log.Info().Str("action", "demo_agent_created").Str("agent_id", agent.ID).Msg("Demo agent created")
	return nil
}
