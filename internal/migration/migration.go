package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	eventsdomain "github.com/smallbiznis/tillpoint/internal/events/domain"
	loyaltydomain "github.com/smallbiznis/tillpoint/internal/loyalty/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	productdomain "github.com/smallbiznis/tillpoint/internal/product/domain"
	promotiondomain "github.com/smallbiznis/tillpoint/internal/promotion/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table in creation order.
func Models() []any {
	return []any{
		&productdomain.Product{},
		&promotiondomain.Promotion{},
		&customerdomain.Customer{},
		&loyaltydomain.PointsTransaction{},
		&loyaltydomain.CreditTransaction{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&eventsdomain.OutboxEvent{},
	}
}

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; other dialects get an additive schema sync.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		for _, model := range Models() {
			if err := syncModel(conn, model); err != nil {
				return err
			}
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// syncModel creates a missing table, or adds missing columns and indexes
// to an existing one. Existing columns are never altered: the sqlite
// migrator rebuilds tables from parsed DDL on AlterColumn and rejects
// the DDL it generated itself for decimal columns.
func syncModel(conn *gorm.DB, model any) error {
	m := conn.Migrator()
	stmt := &gorm.Statement{DB: conn}
	if err := stmt.Parse(model); err != nil {
		return fmt.Errorf("parse model %T: %w", model, err)
	}
	table := stmt.Schema.Table

	if !m.HasTable(model) {
		if err := m.CreateTable(model); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		return nil
	}

	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || field.IgnoreMigration {
			continue
		}
		if m.HasColumn(model, field.DBName) {
			continue
		}
		if err := m.AddColumn(model, field.DBName); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, field.DBName, err)
		}
	}

	for _, idx := range stmt.Schema.ParseIndexes() {
		if m.HasIndex(model, idx.Name) {
			continue
		}
		if err := m.CreateIndex(model, idx.Name); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
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

// Source exposes the embedded SQL files as a migrate source.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}
