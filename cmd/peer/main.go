package main

import (
	"context"
	"fmt"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/peer"
)

func main() {
	app := &cli.App{
		Name:  "skillswap-peer",
		Usage: "headless SkillSwap call peer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost:8080",
				Usage: "signaling server host",
			},
			&cli.StringFlag{
				Name:     "identity",
				Usage:    "identity to authenticate as",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "call",
				Usage: "identity to call; without it the peer waits and answers",
			},
			&cli.StringFlag{
				Name:  "kind",
				Value: "video",
				Usage: "media kind: audio or video",
			},
			&cli.StringSliceFlag{
				Name:  "stun",
				Usage: "STUN server URLs",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("%v\n", err)
	}
}

func run(c *cli.Context) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	identity, err := domain.NewIdentity(c.String("identity"))
	if err != nil {
		return err
	}

	p := peer.NewClient(c.String("host"), identity, c.StringSlice("stun"))
	p.AutoAccept = c.String("call") == ""
	p.OnCallEnded = func(callID domain.CallID, reason string) {
		log.Info().Str("call_id", string(callID)).Str("reason", reason).Msg("call over")
	}

	if err := p.Dial(ctx); err != nil {
		return err
	}
	defer p.Close()

	if target := c.String("call"); target != "" {
		to, err := domain.NewIdentity(target)
		if err != nil {
			return err
		}
		kind := domain.MediaKind(c.String("kind"))
		if !kind.Valid() {
			return fmt.Errorf("unknown media kind %q", c.String("kind"))
		}
		if err := p.Call(to, kind); err != nil {
			return err
		}
	}

	return p.Run(ctx)
}
