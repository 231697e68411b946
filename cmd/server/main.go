// Package main is the entry point for the scoregrid API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/scoregrid/pkg/api"
	"github.com/james-see/scoregrid/pkg/config"
	"github.com/james-see/scoregrid/pkg/converter"
	"github.com/james-see/scoregrid/pkg/diag"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "Server port (overrides the config file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	log, err := cfg.Logger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log.Infof("Swagger docs available at http://localhost:%d/swagger/index.html", cfg.Server.Port)
	opts := converter.Options{Grid: cfg.GridOptions(log), Layout: cfg.LayoutOptions(log), Logger: log}
	if err := api.StartServer(cfg.Server.Port, opts); err != nil {
		log.WithField(diag.FieldCode, diag.Classify(err)).Errorf("Server error: %v", err)
		os.Exit(1)
	}
}
