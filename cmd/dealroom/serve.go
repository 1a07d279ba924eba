package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ticketto/dealroom/internal/api"
	"github.com/ticketto/dealroom/internal/catalog"
	"github.com/ticketto/dealroom/internal/config"
	"github.com/ticketto/dealroom/internal/db"
	"github.com/ticketto/dealroom/internal/negotiation"
	"github.com/ticketto/dealroom/internal/realtime"
	"github.com/ticketto/dealroom/internal/ticket"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dealroom chat server",
		Long:  "Runs the HTTP, websocket and SSE surfaces against the configured database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dealroom.yaml", "path to dealroom config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

// connectFromConfig loads the config and opens the database it names.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	// Local .env files may carry credentials; missing files are fine.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var gormDB *gorm.DB
	switch cfg.DB.Driver {
	case "sqlite":
		gormDB, err = db.ConnectSQLite(cfg.DB.Path)
	default:
		gormDB, err = db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, gormDB, nil
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), nil))

	tickets, err := ticket.NewClient(ticket.ClientOpts{
		BaseURL: cfg.Ticket.BaseURL,
		Timeout: time.Duration(cfg.Ticket.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	hub := realtime.NewHub(logger)
	machine, err := negotiation.New(negotiation.Opts{DB: gormDB, Publisher: hub})
	if err != nil {
		return err
	}
	rooms, err := catalog.New(catalog.Opts{DB: gormDB, Tickets: tickets, Publisher: hub})
	if err != nil {
		return err
	}
	srv, err := api.NewServer(api.Opts{
		DB:      gormDB,
		Hub:     hub,
		Machine: machine,
		Catalog: rooms,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if port == 0 {
		port = cfg.Server.Port
	}
	return srv.Start(ctx, port)
}
