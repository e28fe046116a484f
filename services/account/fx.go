package account

import (
	"encoding/json"
	"io"

	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
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

	users := api.Group("/users", middleware.RequireRole("user"))
	users.GET("/me", p.Service.handleGetUser)
	users.PATCH("/me", p.Service.handleUpdateUser)

	clients := api.Group("/clients", middleware.RequireRole("client"))
	clients.GET("/me", p.Service.handleGetClient)
	clients.PATCH("/me", p.Service.handleUpdateClient)
	clients.POST("/me/recharges", p.Service.handleInitiateRecharge)
	clients.POST("/me/recharges/:id/confirm", p.Service.handleConfirmRecharge)
	clients.GET("/me/recharges", p.Service.handleListRecharges)
}

func (s *Service) handleGetUser(c *gin.Context) {
	u, err := s.GetUser(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, u)
}

func (s *Service) handleUpdateUser(c *gin.Context) {
	var in ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	u, err := s.UpdateUserProfile(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, u)
}

func (s *Service) handleGetClient(c *gin.Context) {
	client, err := s.GetClient(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, client)
}

func (s *Service) handleUpdateClient(c *gin.Context) {
	var in ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	client, err := s.UpdateClientProfile(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, client)
}

type rechargeRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Service) handleInitiateRecharge(c *gin.Context) {
	var in rechargeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	r, err := s.InitiateRecharge(c.Request.Context(), middleware.AccountID(c), in.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, r)
}

func (s *Service) handleConfirmRecharge(c *gin.Context) {
	// optional provider payload, stored as-is on the recharge
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}
	if len(payload) > 0 && !json.Valid(payload) {
		c.Error(errutil.BadRequest("provider payload must be JSON", nil))
		return
	}

	r, err := s.ConfirmRecharge(c.Request.Context(), middleware.AccountID(c), c.Param("id"), payload)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, r)
}

func (s *Service) handleListRecharges(c *gin.Context) {
	list, err := s.ListRecharges(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"recharges": list})
}
