package presence

import (
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("presence.service",
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
	g := p.Engine.Group("/api/v1/presence", p.Auth)
	g.POST("/connect", p.Service.handleConnect)
	g.POST("/heartbeat", p.Service.handleHeartbeat)
	g.POST("/disconnect", p.Service.handleDisconnect)
	g.GET("/online", p.Service.handleOnline)
}

func (s *Service) handleConnect(c *gin.Context) {
	if err := s.Connect(c.Request.Context(), middleware.AccountID(c)); err != nil {
		c.Error(err)
		return
	}
	c.Status(204)
}

func (s *Service) handleHeartbeat(c *gin.Context) {
	if err := s.Heartbeat(c.Request.Context(), middleware.AccountID(c)); err != nil {
		c.Error(err)
		return
	}
	c.Status(204)
}

func (s *Service) handleDisconnect(c *gin.Context) {
	if err := s.Disconnect(c.Request.Context(), middleware.AccountID(c)); err != nil {
		c.Error(err)
		return
	}
	c.Status(204)
}

func (s *Service) handleOnline(c *gin.Context) {
	users, err := s.Online(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"online": users})
}
