package main

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/display"
	"Go2DAQSpectra/internal/logging"
	"Go2DAQSpectra/internal/model"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	url := flag.String("url", "", "NATS server URL (overrides config)")
	subject := flag.String("subject", "", "Subject prefix (overrides config)")
	debug := flag.Bool("debug", false, "Verbose console logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *url != "" {
		cfg.NATS.URL = *url
	}
	if *subject != "" {
		cfg.NATS.Subject = *subject
	}
	logger := logging.NewDefault()
	if *debug {
		logger = logging.NewDevelopment()
	}
	defer logger.Sync()

	sub, err := display.NewSubscriber(cfg.NATS.URL, cfg.NATS.Subject, logger)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Start(display.Handlers{
		OnPoints: func(points []model.Point) {
			for _, p := range points {
				fmt.Println(formatPoint(p))
			}
		},
		OnLine: func(line display.LogLine) {
			fmt.Printf("[%s] %s\n", line.Time.Format(time.TimeOnly), line.Text)
		},
		OnClear: func() {
			fmt.Println("--- new measurement ---")
		},
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	log.Printf("Listening on '%s.>' at %s", cfg.NATS.Subject, cfg.NATS.URL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func formatPoint(p model.Point) string {
	if p.Value.Kind == model.KindSequence {
		return fmt.Sprintf("ch%d %8.3fs  %d readings", p.Channel, p.Elapsed.Seconds(), len(p.Value.Sequence))
	}
	return fmt.Sprintf("ch%d %8.3fs  %+.6f V", p.Channel, p.Elapsed.Seconds(), p.Value.Scalar)
}
