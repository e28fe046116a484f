package media

import (
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("media.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In

	Engine  *gin.Engine
	Service *Service
	Auth    gin.HandlerFunc `name:"auth"`
}

func registerRoutes(p routeParams) {
	g := p.Engine.Group("/api/v1/media", p.Auth)
	g.POST("/videos", middleware.RequireRole("client"), p.Service.handleUploadVideo)
	g.POST("/images", p.Service.handleUploadImage)
}

func (s *Service) handleUploadVideo(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.Error(errutil.BadRequest("file required", err, errutil.WithErr(err)))
		return
	}

	res, err := s.UploadVideo(c.Request.Context(), middleware.AccountID(c), file)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, res)
}

func (s *Service) handleUploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.Error(errutil.BadRequest("file required", err, errutil.WithErr(err)))
		return
	}

	kind := c.DefaultPostForm("kind", "profile")
	if kind != "profile" && kind != "background" {
		c.Error(errutil.ValidationFailed("kind must be profile or background", nil))
		return
	}

	url, err := s.UploadImage(c.Request.Context(), middleware.AccountID(c), kind, file)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, gin.H{"url": url})
}
