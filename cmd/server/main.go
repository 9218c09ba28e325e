package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/geoalert"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/server"
)

func main() {
	serviceConfig, err := helper.NewServiceConfiguration()
	if err != nil {
		log.Fatalf("Failed to load service configuration: %v", err)
	}
	logger := helper.NewLogger(os.Stdout, serviceConfig.LogLevel)
	slog.SetDefault(logger)

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to load database configuration: %v", err)
	}

	g, err := geoalert.NewGeoAlert(dbConfig, serviceConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create geoalert: %v", err)
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.NewServer(serviceConfig.HTTPAddr, g, logger).Run(ctx)
	if err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
