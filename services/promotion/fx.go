package promotion

import (
	"pubcash-backend/pkg/db/pagination"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("promotion.service",
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

	promos := api.Group("/promotions")
	promos.GET("/:id", p.Service.handleGet)
	promos.GET("/:id/comments", p.Service.handleListComments)

	promos.POST("", middleware.RequireRole("client"), p.Service.handleCreate)
	api.GET("/feed", middleware.RequireRole("user"), p.Service.handleFeed)
	promos.POST("/:id/interactions", middleware.RequireRole("user"), p.Service.handleInteraction)
	promos.POST("/:id/views", middleware.RequireRole("user"), p.Service.handleDirectView)
	promos.POST("/:id/comments", middleware.RequireRole("user"), p.Service.handleAddComment)

	clients := api.Group("/clients/me", middleware.RequireRole("client"))
	clients.GET("/promotions", p.Service.handleListForClient)
	clients.GET("/stats", p.Service.handleStats)
	clients.GET("/history", p.Service.handleHistory)

	users := api.Group("/users/me", middleware.RequireRole("user"))
	users.GET("/interactions", p.Service.handleInteractionHistory)
	users.GET("/earnings", p.Service.handleEarnings)
}

func (s *Service) handleCreate(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	res, err := s.Create(c.Request.Context(), middleware.AccountID(c), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, res)
}

func (s *Service) handleGet(c *gin.Context) {
	p, err := s.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, p)
}

func (s *Service) handleFeed(c *gin.Context) {
	sameMunicipality := c.Query("municipality") == "same"

	promos, err := s.ListForUser(c.Request.Context(), middleware.AccountID(c), sameMunicipality)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"promotions": promos})
}

type interactionRequest struct {
	Type string `json:"type"`
}

func (s *Service) handleInteraction(c *gin.Context) {
	var in interactionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	res, err := s.RecordInteraction(c.Request.Context(), middleware.AccountID(c), c.Param("id"), in.Type)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, res)
}

func (s *Service) handleDirectView(c *gin.Context) {
	res, err := s.RecordDirectView(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, res)
}

func (s *Service) handleListForClient(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination parameters", err, errutil.WithErr(err)))
		return
	}

	promos, info, err := s.ListForClient(c.Request.Context(), middleware.AccountID(c), page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"promotions": promos, "page_info": info})
}

func (s *Service) handleStats(c *gin.Context) {
	stats, err := s.Stats(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, stats)
}

func (s *Service) handleHistory(c *gin.Context) {
	entries, err := s.History(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"history": entries})
}

func (s *Service) handleInteractionHistory(c *gin.Context) {
	items, err := s.InteractionHistory(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"interactions": items})
}

func (s *Service) handleEarnings(c *gin.Context) {
	summary, err := s.Earnings(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, summary)
}

func (s *Service) handleListComments(c *gin.Context) {
	comments, err := s.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(200, gin.H{"comments": comments})
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Service) handleAddComment(c *gin.Context) {
	var in commentRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	comment, err := s.AddComment(c.Request.Context(), middleware.AccountID(c), c.Param("id"), in.Body)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, comment)
}
