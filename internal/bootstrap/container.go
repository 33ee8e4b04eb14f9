package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/config"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/controller"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/unitofwork"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/service"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/blob"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/embedding"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/index"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm/factory"
	pktNats "github.com/noman-nawaz-dev/chatbot-backend/pkg/nats"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/workflow"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	IndexerService service.IIndexerService
	EventListener  service.IEventListener

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewProvider(factory.ProviderConfig{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     cfg.Ai.OllamaBaseURL,
		APIKey:      cfg.Ai.OpenAIAPIKey,
		VisionModel: cfg.Ai.VisionModel,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Image captioning reuses the generation provider when it is multimodal.
	var captioner ingest.Captioner
	if vision, ok := llmProvider.(llm.VisionProvider); ok {
		captioner = vision
	} else {
		log.Printf("[WARN] LLM provider has no vision support, image uploads will be skipped")
	}

	// 4. Storage
	var blobStore blob.Store
	if cfg.Blob.Bucket != "" {
		gcsStore, err := blob.NewGCSStore(context.Background(), cfg.Blob.Bucket)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize GCS blob store: %v", err)
		}
		blobStore = gcsStore
		log.Printf("[INFO] Using Blob Store: GCS (%s)", cfg.Blob.Bucket)
	} else {
		blobStore = blob.NewMemoryStore()
		log.Printf("[WARN] HISTORY_BUCKET not set, history blobs are in-memory only")
	}

	historyStore := history.NewStore(blobStore, uowFactory, cfg.Blob.Prefix)
	indexStore := index.NewStore(uowFactory, embeddingProvider, sysLogger)

	// 5. Infrastructure
	var natsPub *pktNats.Publisher
	var eventListener service.IEventListener
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}

		natsSub, subErr := pktNats.NewSubscriber(cfg.App.NatsURL)
		if subErr != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", subErr)
		} else {
			eventListener = service.NewEventListener(natsSub, sysLogger)
		}
	}

	// 6. Turn Pipeline
	broker := stream.NewBroker(sysLogger)
	ingestor := ingest.NewIngestor(captioner, sysLogger)
	scheduler := service.NewIndexScheduler(pubSub, cfg.Chat.IndexTopic)

	orchestrator := workflow.NewOrchestrator(
		ingestor,
		indexStore,
		llmProvider,
		broker,
		scheduler,
		cfg.Chat.RetrievalTopK,
		sysLogger,
	)

	// 7. Services
	indexerService := service.NewIndexerService(pubSub, cfg.Chat.IndexTopic, indexStore, sysLogger)

	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}
	chatService := service.NewChatService(
		orchestrator,
		broker,
		historyStore,
		uowFactory,
		eventPublisher,
		cfg.Chat.HistoryWindow,
		sysLogger,
	)

	// 8. Controllers
	return &Container{
		ChatController: controller.NewChatController(chatService, broker),
		IndexerService: indexerService,
		EventListener:  eventListener,
		Logger:         sysLogger,
	}
}
