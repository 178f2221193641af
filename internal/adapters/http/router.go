package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/adapters/signal"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/app"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, presence *app.Presence, auth gin.HandlerFunc) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SkillSwapSessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.Use(auth)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("identity", c.GetString("identity")).Msg("ws signal endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	api.GET("/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"online": presence.ListOnline()})
	})

	return r
}
