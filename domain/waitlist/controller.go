package waitlist

import (
	"net/http"
	"time"

	"github.com/akeren/snipit-waitlist/config/router"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
	"github.com/akeren/snipit-waitlist/pkg/factory"
	"github.com/akeren/snipit-waitlist/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

func NewWaitlistController(
	s store.Store,
	logger *log.Logger,
	cache factory.Cache,
	adminAPIKey string,
) *router.RESTController {

	return router.NewRESTController(
		"WaitlistController",
		"/api",
		func(rs *router.RouterService, c *router.RESTController) {
			service := NewWaitlistService(logger, s)

			signupLimiter := createSignupRateLimiter(cache)

			rs.AddPostHandler(c, signupLimiter, "waitlist", joinWaitlistHandler(service, models.WaitlistSourceAPI))
			rs.AddPostHandler(c, signupLimiter, "join-waitlist", joinWaitlistHandler(service, models.WaitlistSourceLegacyAPI))
			rs.AddGetHandler(c, nil, "waitlist", adminSnapshotHandler(service), requireAdmin(adminAPIKey))
		},
	)
}

func createSignupRateLimiter(cache factory.Cache) ratelimit.RateLimiter {
	const signupRequestsPerMinute = 30 // More permissive than monitoring (10/min)

	limiterFactory := factory.NewDefaultRateLimiterFactory(signupRequestsPerMinute, time.Minute, cache, nil)

	return limiterFactory.CreateRateLimiter()
}

func joinWaitlistHandler(service WaitlistService, source string) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req JoinWaitlistRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Error("Failed to bind request", "error", err)

			validationErrors := apperrors.FormatValidationErrors(err, &req)
			if len(validationErrors) > 0 {
				return router.BadRequestResult("Invalid request payload", validationErrors)
			}

			return router.BadRequestResult("Invalid request body", nil)
		}

		response, err := service.Join(ctx.Request.Context(), &req, source)
		if err != nil {
			return router.ErrorResult(
				joinStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResult(response, "You have been added to the waitlist")
	}
}

// joinStatusCode maps duplicates to 400 rather than 409: repeat signups are a
// validation-grade rejection on the public contract.
func joinStatusCode(err error) int {
	if store.IsDuplicate(err) {
		return apperrors.StatusBadRequest
	}
	return apperrors.HTTPStatusCode(err)
}

func adminSnapshotHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.Snapshot(ctx.Request.Context())
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResult(gin.H{
			"count":       response.Count,
			"lastUpdated": response.LastUpdated,
			"emails":      response.Emails,
		}, "Waitlist retrieved successfully")
	}
}

// requireAdmin guards the read path. Either credential is accepted; a failed
// request learns nothing about which check was attempted or why it failed.
func requireAdmin(adminAPIKey string) router.MiddlewareFunc {
	return func(c *router.RequestContext) {
		if isAuthorizedAdmin(c, adminAPIKey) {
			c.Next()
			return
		}

		logger := router.GetLogger(c)
		logger.Warn("Unauthorized waitlist read attempt", "remote_addr", c.ClientIP())

		c.AbortWithStatusJSON(http.StatusUnauthorized, router.UnauthorizedResult("Unauthorized").ToJSON())
	}
}
