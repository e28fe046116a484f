package admin

import (
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("admin.service",
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
	g := p.Engine.Group("/api/v1/admin", p.Auth, middleware.RequireRole("admin"))
	g.GET("/dashboard", p.Service.handleDashboard)
	g.GET("/clients", p.Service.handleListClients)
	g.DELETE("/clients/:id", p.Service.handleDeleteClient)
	g.GET("/wallet", p.Service.handleWallet)
}

func (s *Service) handleDashboard(c *gin.Context) {
	d, err := s.Dashboard(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, d)
}

func (s *Service) handleListClients(c *gin.Context) {
	clients, err := s.ListClients(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"clients": clients})
}

func (s *Service) handleDeleteClient(c *gin.Context) {
	if err := s.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(204)
}

func (s *Service) handleWallet(c *gin.Context) {
	w, entries, err := s.Wallet(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"wallet": w, "entries": entries})
}
