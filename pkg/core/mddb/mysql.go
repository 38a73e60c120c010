package mddb

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/task"
)

// init registers the MySQL dialector factory. MySQL is the default
// metadata-store backend.
func init() {
	RegisterDialector("mysql", func(conn task.MetaDB) (gorm.Dialector, error) {
		port := conn.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = conn.User
		cfg.Passwd = conn.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, port)
		cfg.DBName = conn.Name
		cfg.ParseTime = true
		return gormmysql.Open(cfg.FormatDSN()), nil
	})
}
