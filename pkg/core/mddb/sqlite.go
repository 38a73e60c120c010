package mddb

import (
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/task"
)

// init registers the SQLite dialector factory. The database file path is
// carried in the connection descriptor's name field; used mainly for local
// development and tests.
func init() {
	RegisterDialector("sqlite", func(conn task.MetaDB) (gorm.Dialector, error) {
		return gormsqlite.Open(conn.Name), nil
	})
}
