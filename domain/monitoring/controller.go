package monitoring

import (
	"context"
	"time"

	"github.com/akeren/snipit-waitlist/config/router"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/akeren/snipit-waitlist/pkg/ratelimit"
	"gorm.io/gorm"
)

type Cache interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	Database    int `json:"database"`    // 1 = healthy, 0 = unhealthy/not configured
	Cache       int `json:"cache"`       // 1 = healthy, 0 = unhealthy/not configured
	Storage     int `json:"storage"`     // 1 = canonical waitlist backend readable
	Replication int `json:"replication"` // 1 = replicator running, 0 = not configured
	Uptime      int `json:"uptime"`      // uptime in seconds

	ReplicationStats *store.ReplicatorStats `json:"replication_stats,omitempty"`
}

type MonitoringController struct {
	db         *gorm.DB
	logger     *log.Logger
	cache      Cache
	canonical  store.Backend
	replicator *store.Replicator
	startTime  time.Time
}

func NewMonitoringController(
	db *gorm.DB,
	logger *log.Logger,
	cache Cache,
	canonical store.Backend,
	replicator *store.Replicator,
) *router.RESTController {
	ctrl := &MonitoringController{
		db:         db,
		logger:     logger,
		cache:      cache,
		canonical:  canonical,
		replicator: replicator,
		startTime:  time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/api",
		func(routerService *router.RouterService, controller *router.RESTController) {

			monitoringRateLimiter := createMonitoringRateLimiter(routerService)

			routerService.AddGetHandler(controller, monitoringRateLimiter, "healthz", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.liveness(c)
			})

			routerService.AddGetHandler(controller, monitoringRateLimiter, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService, c)
			})
		},
	)
}

func createMonitoringRateLimiter(routerService *router.RouterService) ratelimit.RateLimiter {

	const monitoringRequestsPerMinute = 10 // More restrictive than default 100

	config := &ratelimit.RateLimitConfig{
		Requests: monitoringRequestsPerMinute,
		Window:   time.Minute, // 1 minute window
		Redis:    nil,         // For now, use in-memory (could be enhanced to use Redis)
		Logger:   nil,         // Logger not needed for in-memory limiter
	}

	return ratelimit.NewRateLimiter(config)
}

// liveness answers as long as the process is serving requests; it consults no
// dependencies.
func (ctrl *MonitoringController) liveness(
	c *router.RequestContext,
) *router.ServiceResult {
	return &router.ServiceResult{
		StatusCode: 200,
		Data:       nil,
		Message:    "snipit-waitlist is alive",
	}
}

func (ctrl *MonitoringController) healthCheck(
	routerService *router.RouterService,
	c *router.RequestContext,
) *router.ServiceResult {
	logger := routerService.GetLogger(c)
	logger.Info("Health check endpoint called")
	healthStatus := ctrl.performHealthChecks(c.Request.Context(), logger)

	return &router.ServiceResult{
		StatusCode: 200,
		Data:       healthStatus,
		Message:    "snipit-waitlist health check completed",
	}
}

func (ctrl *MonitoringController) performHealthChecks(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Uptime: int(time.Since(ctrl.startTime).Seconds()),
	}

	checkDatabaseConnectivity(ctx, ctrl, &status, logger)

	checkCacheConnectivity(ctx, ctrl, &status, logger)

	checkStorageConnectivity(ctx, ctrl, &status, logger)

	checkReplication(ctrl, &status, logger)

	return status
}

func checkCacheConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.cache != nil {
		if ctrl.checkCache(ctx) {
			status.Cache = 1
			logger.Info("Cache health check passed")
		} else {
			status.Cache = 0
			logger.Error("Cache health check failed")
		}
	} else {
		status.Cache = 0 // Cache not configured
		logger.Info("Cache not configured, cache health check skipped")
	}
}

func checkDatabaseConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.db == nil {
		status.Database = 0 // Remote store not configured
		logger.Info("Database not configured, database health check skipped")
		return
	}

	if ctrl.checkDatabase(ctx) {
		status.Database = 1
		logger.Info("Database health check passed")
	} else {
		status.Database = 0
		logger.Error("Database health check failed")
	}
}

func checkStorageConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.canonical == nil {
		status.Storage = 0
		logger.Error("Canonical waitlist backend not configured")
		return
	}

	if _, err := ctrl.canonical.Count(ctx); err != nil {
		status.Storage = 0
		logger.Error("Canonical waitlist backend health check failed", "backend", ctrl.canonical.Name(), "error", err)
		return
	}

	status.Storage = 1
	logger.Info("Canonical waitlist backend health check passed", "backend", ctrl.canonical.Name())
}

func checkReplication(ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.replicator == nil {
		status.Replication = 0
		logger.Info("Replication not configured, replication health check skipped")
		return
	}

	stats := ctrl.replicator.Stats()
	status.Replication = 1
	status.ReplicationStats = &stats
}

func (ctrl *MonitoringController) checkDatabase(ctx context.Context) bool {
	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return false
	}

	// Ping the database
	return sqlDB.PingContext(ctx) == nil
}

func (ctrl *MonitoringController) checkCache(ctx context.Context) bool {
	// Ping the cache
	return ctrl.cache.Ping(ctx) == nil
}
