package middleware

import (
	"github.com/gin-gonic/gin"
)

const ViewerKey = "viewer_id"

// LoadViewer pulls the acting user id from the X-Api-User-Id header, falling
// back to the viewer_id query parameter, and stores it on the context. The
// id is trusted as-is; authentication happens upstream of this service.
func LoadViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := c.GetHeader("X-Api-User-Id")
		if viewer == "" {
			viewer = c.Query("viewer_id")
		}
		c.Set(ViewerKey, viewer)
		c.Next()
	}
}

// SignatureCheck is the request-signature hook. Deployments verify
// signatures before traffic reaches this service, so it passes everything
// through.
func SignatureCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}

// Viewer returns the id set by LoadViewer, empty when the caller sent none.
func Viewer(c *gin.Context) string {
	v, _ := c.Get(ViewerKey)
	s, _ := v.(string)
	return s
}
