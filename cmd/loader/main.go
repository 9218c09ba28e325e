package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/geoalert"
	"github.com/siherrmann/geoalert/helper"
)

func main() {
	once := flag.Bool("once", false, "load the feed once and exit")
	flag.Parse()

	serviceConfig, err := helper.NewServiceConfiguration()
	if err != nil {
		log.Fatalf("Failed to load service configuration: %v", err)
	}
	if serviceConfig.GeoJSONURL == "" {
		log.Fatal("GEOJSON_URL must be set")
	}
	logger := helper.NewLogger(os.Stdout, serviceConfig.LogLevel)

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to load database configuration: %v", err)
	}

	g, err := geoalert.NewGeoAlert(dbConfig, serviceConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create geoalert: %v", err)
	}
	defer g.Close()

	l := g.NewLoader()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		_, err = l.LoadOnce(ctx, serviceConfig.GeoJSONURL)
		if err != nil {
			logger.Error("Data load failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	err = l.Run(ctx, serviceConfig.GeoJSONURL, serviceConfig.LoadInterval)
	if err != nil {
		logger.Error("Loader stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
