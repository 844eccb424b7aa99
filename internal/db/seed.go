package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/internal/models"
	"gorm.io/gorm"
)

// Demo account created by Seed.
const (
	DemoCode     = "DEMO2024"
	DemoEmail    = "demo@chantiers.app"
	DemoPassword = "demo-chantiers"
)

// Seed inserts a demo company with its owner and a few clients. Running it
// twice leaves a single copy.
func Seed(db *gorm.DB, trialDays int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var ent models.Entreprise
		err := tx.Where("code = ?", DemoCode).First(&ent).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		ent = models.Entreprise{
			Name:               "Démo Rénovation",
			LegalName:          "Démo Rénovation SARL",
			Code:               DemoCode,
			Email:              "contact@demo-renovation.fr",
			Address:            "12 rue des Artisans",
			PostalCode:         "69003",
			City:               "Lyon",
			TrialStartsAt:      now,
			TrialEndsAt:        now.AddDate(0, 0, trialDays),
			SubscriptionStatus: models.SubscriptionTrialing,
		}
		if err := tx.Create(&ent).Error; err != nil {
			return fmt.Errorf("seed entreprise: %w", err)
		}

		hash, err := auth.HashPassword(DemoPassword)
		if err != nil {
			return err
		}
		owner := models.User{
			Email:        DemoEmail,
			Name:         "Camille Démo",
			Password:     hash,
			Role:         models.RoleOwner,
			EntrepriseID: &ent.ID,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("seed owner: %w", err)
		}

		clients := []models.Client{
			{EntrepriseID: ent.ID, Name: "Mme Martin", Phone: "06 12 34 56 78", Address: "4 place Bellecour, Lyon"},
			{EntrepriseID: ent.ID, Name: "SCI Les Tilleuls", Email: "gestion@tilleuls.fr"},
		}
		if err := tx.Create(&clients).Error; err != nil {
			return fmt.Errorf("seed clients: %w", err)
		}
		return nil
	})
}
