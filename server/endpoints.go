package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/faultkit/component"
	apperrors "github.com/skillsenselab/faultkit/errors"
	"github.com/skillsenselab/faultkit/guard"
	"github.com/skillsenselab/faultkit/observability"
	"github.com/skillsenselab/faultkit/version"
)

// Health returns a handler reporting service health aggregated over the
// component registry.
func Health(serviceName string, components *component.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version.GetVersionInfo().Version)
		if components != nil {
			for _, h := range components.HealthAll(c.Request.Context()) {
				sh.AddComponent(h)
			}
		}

		httpStatus := http.StatusOK
		if sh.Status == component.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":     sh.Status,
			"service":    sh.Service,
			"version":    sh.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": sh.Components,
		})
	}
}

// GuardStats returns a handler exposing every guard's breaker, bulkhead
// and rate limiter snapshot.
func GuardStats(guards *guard.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guards == nil {
			RespondOK(c, []guard.Stats{})
			return
		}
		RespondOK(c, guards.StatsAll())
	}
}

// GuardReset returns a handler that forces the named guard's circuit
// closed. Unknown names get a 404; guards are never created here.
func GuardReset(guards *guard.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if guards == nil {
			RespondWithError(c, apperrors.New(apperrors.ErrCodeInternal, "guard registry not configured", http.StatusInternalServerError))
			return
		}
		g, ok := guards.Lookup(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown guard", "name": name})
			return
		}
		g.Reset()
		RespondOK(c, g.Stats())
	}
}

// Version returns a handler that reports build version information.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		c.JSON(http.StatusOK, gin.H{
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"git_branch": v.GitBranch,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"is_release": v.IsRelease,
			"is_dirty":   v.IsDirty,
		})
	}
}
