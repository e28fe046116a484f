package pack

import (
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("pack.service",
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
	g := p.Engine.Group("/api/v1/packs")
	g.GET("", p.Service.handleList)

	admin := g.Use(p.Auth, middleware.RequireRole("admin"))
	admin.POST("", p.Service.handleCreate)
}

func (s *Service) handleList(c *gin.Context) {
	packs, err := s.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"packs": packs})
}

func (s *Service) handleCreate(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	p, err := s.Create(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, p)
}
