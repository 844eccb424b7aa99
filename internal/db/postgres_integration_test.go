//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "chantiers",
				"POSTGRES_PASSWORD": "chantiers",
				"POSTGRES_DB":       "chantiers",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Type:     "postgres",
		Host:     host,
		Port:     port.Int(),
		User:     "chantiers",
		Password: "chantiers",
		DBName:   "chantiers",
		SSLMode:  "disable",
		MaxConns: 4,
	}
}

func TestPostgresSQLMigrationsAndUniqueConversion(t *testing.T) {
	cfg := startPostgres(t)
	d, err := Open(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, Prepare(d, cfg, true, quietLogger()))
	// Applying twice is a no-op.
	require.NoError(t, RunSQLMigrations(cfg.URL()))
	require.NoError(t, Seed(d, 14))

	var ent models.Entreprise
	require.NoError(t, d.Where("code = ?", DemoCode).First(&ent).Error)

	q := models.Quote{EntrepriseID: ent.ID, Title: "Salle de bain", ClientName: "Mme Martin", Status: models.QuoteAccepted}
	require.NoError(t, d.Create(&q).Error)

	first := models.Invoice{EntrepriseID: ent.ID, QuoteID: &q.ID, Title: q.Title, ClientName: q.ClientName, Number: "FAC-2024-0001"}
	require.NoError(t, d.Create(&first).Error)

	dup := models.Invoice{EntrepriseID: ent.ID, QuoteID: &q.ID, Title: q.Title, ClientName: q.ClientName, Number: "FAC-2024-0002"}
	err = d.Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	free := []models.Invoice{
		{EntrepriseID: ent.ID, Title: "Dépannage", ClientName: "SCI Les Tilleuls", Number: "FAC-2024-0003"},
		{EntrepriseID: ent.ID, Title: "Dépannage", ClientName: "SCI Les Tilleuls", Number: "FAC-2024-0004"},
	}
	require.NoError(t, d.Create(&free).Error)
}
