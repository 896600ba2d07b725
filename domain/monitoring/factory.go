package monitoring

import (
	"github.com/akeren/snipit-waitlist/config/router"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/store"
	"gorm.io/gorm"
)

type MonitoringControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultMonitoringControllerFactory struct {
	db         *gorm.DB
	logger     *log.Logger
	cache      Cache
	canonical  store.Backend
	replicator *store.Replicator
}

func NewMonitoringControllerFactory(
	db *gorm.DB,
	logger *log.Logger,
	cache Cache,
	canonical store.Backend,
	replicator *store.Replicator,
) MonitoringControllerFactory {
	return &DefaultMonitoringControllerFactory{
		db:         db,
		logger:     logger,
		cache:      cache,
		canonical:  canonical,
		replicator: replicator,
	}
}

func (f *DefaultMonitoringControllerFactory) CreateController() *router.RESTController {
	return NewMonitoringController(f.db, f.logger, f.cache, f.canonical, f.replicator)
}
