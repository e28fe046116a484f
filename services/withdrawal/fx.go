package withdrawal

import (
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("withdrawal.service",
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
	api := p.Engine.Group("/api/v1", p.Auth)

	users := api.Group("/users/me/withdrawals", middleware.RequireRole("user"))
	users.POST("", p.Service.handleRequest)
	users.GET("", p.Service.handleListForUser)

	admin := api.Group("/admin/withdrawals", middleware.RequireRole("admin"))
	admin.GET("", p.Service.handleListPending)
	admin.POST("/:id/decision", p.Service.handleProcess)
}

type requestBody struct {
	Amount   int64  `json:"amount"`
	Operator string `json:"operator"`
	Phone    string `json:"phone"`
}

func (s *Service) handleRequest(c *gin.Context) {
	var in requestBody
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	w, err := s.Request(c.Request.Context(), middleware.AccountID(c), in.Amount, in.Operator, in.Phone)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, w)
}

func (s *Service) handleListForUser(c *gin.Context) {
	list, err := s.ListForUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"withdrawals": list})
}

func (s *Service) handleListPending(c *gin.Context) {
	list, err := s.ListPending(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"withdrawals": list})
}

type decisionBody struct {
	Decision string `json:"decision"`
}

func (s *Service) handleProcess(c *gin.Context) {
	var in decisionBody
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	w, err := s.Process(c.Request.Context(), middleware.AccountID(c), c.Param("id"), in.Decision)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, w)
}
