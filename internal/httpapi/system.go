package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/backend/internal/vacuum"
	"github.com/aura-webinar/backend/pkg/response"
)

// TriggerVacuum handles POST /system/vacuum (system.vacuum). Vacuum
// passes are not cancellable by clients (spec §5), so the sweep runs on
// its own bounded context rather than the request's — a client that
// disconnects mid-sweep doesn't interrupt it, it just misses the reply.
func TriggerVacuum(sweeper *vacuum.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		sweeper.SweepOnce(ctx)
		response.OK(c, gin.H{"status": "swept"})
	}
}
