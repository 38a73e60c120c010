package mddb

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

//go:embed migrations
var migrationFiles embed.FS

// Migrate applies the embedded metadata-store schema migrations for the
// connection's dialect. Schemas ship for mysql (the historical deployment)
// and sqlite (local stores); other dialects are provisioned externally.
func Migrate(conn task.MetaDB) error {
	db, err := Open(conn)
	if err != nil {
		return err
	}
	defer closeDB(db)
	return migrateDB(db, conn.Name)
}

func migrateDB(db *gorm.DB, dbName string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to obtain metadata-store handle for migration", err)
	}

	dialect := db.Dialector.Name()
	var driver database.Driver
	switch dialect {
	case "mysql":
		driver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{DatabaseName: dbName})
	case "sqlite":
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{DatabaseName: dbName})
	default:
		return exception.NewCoreErrorf(moduleName,
			"no embedded schema migrations for metadata-store dialect '%s'", dialect)
	}
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to initialize migration driver", err)
	}

	source, err := iofs.New(migrationFiles, "migrations/"+dialect)
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to load embedded migrations", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return exception.NewCoreError(moduleName, "failed to initialize migrator", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Metadata-store schema is up to date")
			return nil
		}
		return exception.NewCoreError(moduleName, "metadata-store migration failed", err)
	}
	logger.Infof("Metadata-store schema migrated")
	return nil
}
