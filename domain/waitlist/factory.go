package waitlist

import (
	"github.com/akeren/snipit-waitlist/config/router"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/akeren/snipit-waitlist/pkg/factory"
)

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	store       store.Store
	logger      *log.Logger
	cache       factory.Cache
	adminAPIKey string
}

func NewWaitlistServiceFactory(s store.Store, logger *log.Logger, cache factory.Cache, adminAPIKey string) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		store:       s,
		logger:      logger,
		cache:       cache,
		adminAPIKey: adminAPIKey,
	}
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	return NewWaitlistService(f.logger, f.store)
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.store, f.logger, f.cache, f.adminAPIKey)
}
