package main

import (
	"flag"
	"os"
	"strings"

	"github.com/himanishpuri/HammerCheck/pkg/hammercheck"
	"github.com/himanishpuri/HammerCheck/pkg/logger"
)

var (
	envCfg         hammercheck.EnvConfig
	port           int
	dbPath         string
	allowedOrigins string
	noHistory      bool
	logLevel       string
)

func init() {
	var err error
	envCfg, err = hammercheck.LoadEnvConfig()
	if err != nil {
		logger.Fatalf("%v", err)
	}

	flag.IntVar(&port, "port", envCfg.Port, "HTTP server port")
	flag.StringVar(&dbPath, "db", envCfg.DBPath, "Path to SQLite database")
	flag.StringVar(&allowedOrigins, "origins", strings.Join(envCfg.Origins, ","), "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&noHistory, "no-history", false, "Do not store analysis runs")
	flag.StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
}

func main() {
	flag.Parse()

	if logLevel != "" {
		level, ok := logger.ParseLevel(logLevel)
		if !ok {
			logger.Errorf("Unknown log level %q", logLevel)
			os.Exit(2)
		}
		logger.SetLevel(level)
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	envCfg.DBPath = dbPath
	opts, err := envCfg.Options()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if noHistory {
		opts = append(opts, hammercheck.WithoutHistory())
		dbPath = ""
	}

	service, err := hammercheck.NewService(opts...)
	if err != nil {
		logger.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		logger.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
