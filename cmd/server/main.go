package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/SHAYON2003/SkillSwap-sub000/internal/adapters/http"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/adapters/signal"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/app"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/config"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
)

func main() {
	ctx, cancel := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	presence := app.NewPresence()
	coord := app.NewCoordinator(presence, core.SystemClock(), nil, cfg.RingTimeout, cfg.StaleAfter)
	relay := app.NewRelay(coord, presence)
	limiter := signal.NewCallRateLimiter(cfg.CallRateLimit, cfg.CallRateInterval)
	ctl := signal.NewController(presence, coord, relay, limiter, cfg.PingPeriod, cfg.ReadLimit)

	go coord.Sweep(ctx, cfg.SweepInterval)

	auth := router.BearerIdentityMiddleware(router.TokenIdentityResolver{})
	r := router.SetupRouter(ctx, cfg, ctl, presence, auth)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SkillSwap signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
