package auth

import (
	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/middleware"
	"pubcash-backend/services/account"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(
		NewService,
		fx.Annotate(provideAuthMiddleware, fx.ResultTags(`name:"auth"`)),
	),
	fx.Invoke(registerRoutes),
)

func provideAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return middleware.Authenticate(cfg)
}

func registerRoutes(engine *gin.Engine, s *Service) {
	g := engine.Group("/api/v1/auth")
	g.POST("/users/register", s.handleRegisterUser)
	g.POST("/clients/register", s.handleRegisterClient)
	g.POST("/users/login", s.handleLogin(account.RoleUser))
	g.POST("/clients/login", s.handleLogin(account.RoleClient))
	g.POST("/admins/login", s.handleLogin(account.RoleAdmin))
}

func (s *Service) handleRegisterUser(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	res, err := s.RegisterUser(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, res)
}

func (s *Service) handleRegisterClient(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	res, err := s.RegisterClient(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(201, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in loginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
			return
		}

		res, err := s.Login(c.Request.Context(), role, in.Email, in.Password)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(200, res)
	}
}
