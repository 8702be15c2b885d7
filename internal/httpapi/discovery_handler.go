package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/kagenti-labs/x402-gateway/internal/discovery"
)

// pluginManifest implements GET /.well-known/ai-plugin.json. The
// manifest is stateless and recomputed per request (spec.md §4.9), so
// there is nothing to cache.
func (s *Server) pluginManifest(c *gin.Context) {
	c.JSON(200, discovery.BuildManifest(s.BaseURL, s.Network))
}
