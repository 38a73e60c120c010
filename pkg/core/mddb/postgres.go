package mddb

import (
	"fmt"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/task"
)

// init registers the PostgreSQL dialector factory.
func init() {
	RegisterDialector("postgres", func(conn task.MetaDB) (gorm.Dialector, error) {
		port := conn.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			conn.Host, port, conn.User, conn.Password, conn.Name)
		return gormpostgres.Open(dsn), nil
	})
}
