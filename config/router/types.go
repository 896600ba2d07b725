package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

type MiddlewareFunc = gin.HandlerFunc

type ServiceResult struct {
	StatusCode int
	Data       any
	Message    string
}

type RateLimitResponse struct {
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter string `json:"retry_after"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

type RESTController struct {
	name         string
	mountPoint   string
	version      string
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}

// ToJSON serializes the result into the public envelope {success, message, ...}.
// Map payloads are merged at the top level so handlers can shape the body
// directly; any other payload is nested under "detail".
func (result *ServiceResult) ToJSON() gin.H {
	payload := gin.H{
		"success": result.IsSuccess(),
		"message": result.Message,
	}

	switch data := result.Data.(type) {
	case nil:
	case gin.H:
		mergePayload(payload, data)
	case map[string]any:
		mergePayload(payload, data)
	default:
		payload["detail"] = data
	}

	return payload
}

func mergePayload(payload gin.H, data map[string]any) {
	for key, value := range data {
		if key == "success" || key == "message" {
			continue
		}
		payload[key] = value
	}
}

func (result *ServiceResult) IsSuccess() bool {
	return result.StatusCode >= 200 && result.StatusCode < 300
}

func (result *ServiceResult) IsError() bool {
	return result.StatusCode >= 400
}
