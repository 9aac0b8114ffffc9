package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"products-api/consumer"
	"products-api/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume product events and print a summary on shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.EventsEnabled() {
			return fmt.Errorf("rabbitmq_url is required to consume events")
		}

		log.Printf("Starting Product Event Consumer with %d workers", cfg.NumWorkers)

		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open a channel: %w", err)
		}
		if err := rabbitmq.DeclareQueue(ch, cfg.RabbitMQQueue); err != nil {
			ch.Close()
			return err
		}
		ch.Close()

		log.Printf("Connected to queue: %s", cfg.RabbitMQQueue)

		tracker := consumer.NewEventTracker()

		var wg sync.WaitGroup
		workers := make([]*consumer.Worker, 0, cfg.NumWorkers)
		for i := 0; i < cfg.NumWorkers; i++ {
			worker, err := consumer.NewWorker(i+1, conn, cfg.RabbitMQQueue, tracker)
			if err != nil {
				return err
			}
			workers = append(workers, worker)
			wg.Add(1)
			go worker.Start(&wg)
		}

		log.Printf("All %d workers started successfully", cfg.NumWorkers)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Received shutdown signal, stopping workers...")

		for _, worker := range workers {
			worker.Stop()
		}
		wg.Wait()

		tracker.PrintSummary(cmd.OutOrStdout())
		log.Println("Product Event Consumer shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
