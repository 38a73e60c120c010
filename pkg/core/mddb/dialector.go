package mddb

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// DialectorFactory generates a gorm.Dialector from a metadata-store
// connection descriptor.
type DialectorFactory func(conn task.MetaDB) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given driver name.
func RegisterDialector(driver string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[driver]; exists {
		logger.Warnf("Dialector for driver '%s' already registered. Overwriting.", driver)
	}
	dialectorRegistry[driver] = factory
}

// getDialectorFactory retrieves the DialectorFactory for the specified driver.
func getDialectorFactory(driver string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[driver]
	if !ok {
		return nil, exception.NewCoreError(moduleName,
			fmt.Sprintf("no dialector registered for metadata-store driver: %s", driver),
			exception.ErrUnregistered)
	}
	return factory, nil
}

// Open opens a fresh metadata-store connection for one resolution call.
// An empty driver defaults to mysql, matching the historical deployment.
func Open(conn task.MetaDB) (*gorm.DB, error) {
	driver := conn.Driver
	if driver == "" {
		driver = "mysql"
	}
	factory, err := getDialectorFactory(driver)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(conn)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to build metadata-store dialector", err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewCoreError(moduleName,
			fmt.Sprintf("failed to connect to metadata store %s@%s/%s", conn.User, conn.Host, conn.Name), err)
	}
	return db, nil
}
