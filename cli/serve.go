package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"products-api/config"
	"products-api/faults"
	"products-api/handlers"
	"products-api/rabbitmq"
	"products-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Initialize the store and serve the products API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return serve(cfg)
}

func serve(cfg *config.Config) error {
	log.Printf("Starting Product Service on port %s", cfg.Port)

	// Set Gin mode based on environment
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	// the store must be ready before the listener accepts traffic
	if err := storage.NewInitializer(db).Initialize(context.Background()); err != nil {
		return err
	}

	var events handlers.EventPublisher
	if cfg.EventsEnabled() {
		pool, err := rabbitmq.NewChannelPool(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.ChannelPoolSize)
		if err != nil {
			return err
		}
		defer pool.Close()
		publisher := rabbitmq.NewPublisher(pool, cfg.RabbitMQQueue, rabbitmq.DefaultBufferSize)
		// runs before pool.Close so queued events still go out
		defer publisher.Close()
		events = publisher
		log.Printf("Publishing product events to queue %s", cfg.RabbitMQQueue)
	}

	injector := faults.NewRandomInjector(cfg.CreateFailureRate)
	log.Printf("Create failure rate: %.2f", injector.Rate())

	productHandler := handlers.NewProductHandler(storage.NewProductStore(db), injector, events)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(productHandler),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server running on http://localhost:%s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
		log.Println("Received shutdown signal, draining requests...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Println("Product Service shut down gracefully")
	return nil
}
