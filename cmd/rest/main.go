package main

import (
	"context"
	"log"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/bootstrap"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/config"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/server"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/tracer"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/database"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Indexer Service...")
		if err := container.IndexerService.Consume(context.Background()); err != nil {
			log.Printf("Background Indexer Error: %v", err)
		}
	}()

	if container.EventListener != nil {
		if err := container.EventListener.Start(); err != nil {
			log.Printf("Event Listener Error: %v", err)
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
