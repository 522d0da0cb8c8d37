package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/trainlog/internal/logging"
	"github.com/dmitrijs2005/trainlog/internal/server"
	"github.com/dmitrijs2005/trainlog/internal/server/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, true, cfg.LogLevel)

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		logger.Error(context.Background(), err.Error())
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		logger.Error(context.Background(), err.Error())
		os.Exit(1)
	}
}
