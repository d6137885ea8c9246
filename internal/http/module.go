package http

import (
	"github.com/gin-gonic/gin"

	"propertyhub_backend/platform/config"
)

// Module is implemented by each bounded context that exposes HTTP routes.
type Module interface {
	// Name returns the module's unique name, used in logs.
	Name() string
	// RegisterRoutes mounts the module's routes on the shared router groups.
	RegisterRoutes(rc *RouterContext)
}

// RouterContext carries the router groups and shared middleware modules
// register against.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is the public /api/v1 group.
	V1 *gin.RouterGroup
	// Protected is /api/v1 with authentication required.
	Protected *gin.RouterGroup
	// Admin is /api/v1/admin with authentication plus the admin role.
	Admin *gin.RouterGroup

	Config         config.HTTPConfig
	AuthMiddleware gin.HandlerFunc
}
