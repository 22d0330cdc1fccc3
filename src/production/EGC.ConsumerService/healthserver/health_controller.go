package healthserver

import (
	"context"
	"net/http"
	"sort"
	"time"

	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const checkTimeout = 2 * time.Second

// Check reports nil when a dependency is usable
type Check func(ctx context.Context) error

// HealthController serves liveness, readiness and metrics
type HealthController struct {
	checks map[string]Check
	logger *logger.Logger
}

// NewHealthController creates a new health controller. Readiness requires every check to pass.
func NewHealthController(checks map[string]Check, log *logger.Logger) *HealthController {
	return &HealthController{
		checks: checks,
		logger: log.WithComponent("health"),
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := gin.H{}
	ready := true
	for _, name := range names {
		if err := c.checks[name](checkCtx); err != nil {
			ready = false
			results[name] = err.Error()
			c.logger.Logger.Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}
