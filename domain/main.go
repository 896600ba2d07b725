package domain

import (
	"github.com/akeren/snipit-waitlist/config"
	"github.com/akeren/snipit-waitlist/domain/monitoring"
	"github.com/akeren/snipit-waitlist/domain/waitlist"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	appConfig.RouterService.MountController(monitoring.NewMonitoringController(
		appConfig.DB,
		appConfig.Logger,
		appConfig.Cache,
		appConfig.Canonical,
		appConfig.Replicator,
	))
	appConfig.RouterService.MountController(waitlist.NewWaitlistController(
		appConfig.WaitlistStore,
		appConfig.Logger,
		appConfig.Cache,
		appConfig.Waitlist.AdminAPIKey,
	))
}
