package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	workorderdomain "github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models on mysql and sqlite,
// which the SQL files do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&taxdomain.TaxSettings{},
		&customerdomain.Customer{},
		&workorderdomain.WorkOrder{},
		&workorderdomain.JobLine{},
		&workorderdomain.Part{},
		&auditdomain.AuditLog{},
	)
}
