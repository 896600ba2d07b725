package waitlist

import (
	"crypto/subtle"
	"strings"

	"github.com/akeren/snipit-waitlist/config/router"
)

const bearerPrefix = "Bearer "

// isAuthorizedAdmin accepts either of two independent credentials: a bearer
// token matching the configured admin key, or the X-Admin-Access header flag.
// The header flag is a deliberately weak scheme for the same-origin dashboard,
// not a production trust boundary. With no admin key configured, bearer auth
// never matches and only the header flag works.
func isAuthorizedAdmin(c *router.RequestContext, adminAPIKey string) bool {
	if adminAPIKey != "" {
		authorization := c.GetHeader("Authorization")
		if strings.HasPrefix(authorization, bearerPrefix) {
			token := strings.TrimPrefix(authorization, bearerPrefix)
			if subtle.ConstantTimeCompare([]byte(token), []byte(adminAPIKey)) == 1 {
				return true
			}
		}
	}

	return c.GetHeader("X-Admin-Access") == "true"
}
