package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file feeds both configuration and the PRINTWATCH_PASSWORD_*
	// credential fallback tier during development.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	var (
		backend  = flag.String("backend", "", "Backend to poll (demo, prusaconnect, prusalink, octoprint)")
		url      = flag.String("url", "", "Printer base URL")
		interval = flag.Float64("interval", 0, "Polling interval in seconds")
		port     = flag.String("port", "", "Status server port")
		headless = flag.Bool("headless", false, "Run without the web status server")
	)
	flag.Parse()

	cfg := LoadConfig()
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *url != "" {
		cfg.PrinterBaseURL = *url
	}
	if *interval >= MinPollInterval {
		cfg.PollIntervalS = *interval
	}
	if *port != "" {
		cfg.WebPort = *port
	}

	if err := ValidateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Startup-only interactive tier: prompt for a missing credential and
	// persist it before any polling begins.
	ensureCredential(cfg)

	adapter, err := CreateAdapter(cfg)
	if err != nil {
		log.Fatalf("Failed to create adapter: %v", err)
	}

	pollInterval := time.Duration(cfg.PollIntervalS * float64(time.Second))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		fmt.Printf("Watching %s backend (interval: %s)\n", cfg.Backend, pollInterval)

		poller := NewPoller(adapter, pollInterval, func(state PrinterState) {
			log.Printf("State: %s", state.Summary())
		})
		poller.Start()

		<-sigChan
		fmt.Println("Shutting down...")
		poller.Stop()
		return
	}

	// Poller and status server are wired through the sink callback: every
	// snapshot lands on the dashboard and every websocket subscriber.
	var server *StatusServer
	poller := NewPoller(adapter, pollInterval, func(state PrinterState) {
		server.OnState(state)
	})
	server = NewStatusServer(cfg, poller)

	fmt.Printf("Watching %s backend (interval: %s)\n", cfg.Backend, pollInterval)
	fmt.Printf("Status dashboard: http://localhost:%s\n", cfg.WebPort)

	poller.Start()

	go func() {
		if err := server.Start(cfg.WebPort); err != nil {
			log.Fatalf("Status server error: %v", err)
		}
	}()

	<-sigChan
	fmt.Println("Shutting down...")
	poller.Stop()
}
