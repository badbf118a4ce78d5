package main

import (
	"context"
	"errors"
	goos "os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/coordinator"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/os"
	"github.com/spf13/pflag"
)

var Version = "?"

const shutdownWait = 5 * time.Second

func main() {
	// a missing .env is fine, the environment may be set already
	if err := godotenv.Load(); err != nil && !errors.Is(err, goos.ErrNotExist) {
		logger.Default().Warn().Err(err).Msg("couldn't read .env")
	}

	conf, err := config.NewCoordinatorConfig(goos.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	log := logger.NewConsole(conf.Coordinator.Debug, "c", false)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	c, err := coordinator.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fail")
	}
	c.Run()

	<-os.ExpectTermination()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
