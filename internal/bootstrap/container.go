package bootstrap

import (
	"log"

	"caseforge-be/internal/config"
	"caseforge-be/internal/controller"
	"caseforge-be/internal/pkg/logger"
	"caseforge-be/internal/pkg/mailer"
	"caseforge-be/internal/repository/implementation"
	"caseforge-be/internal/repository/memory"
	"caseforge-be/internal/service"
	"caseforge-be/pkg/llm/factory"
	"caseforge-be/pkg/review/llmgen"

	pktNats "caseforge-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ReviewController     controller.IReviewController
	CapabilityController controller.ICapabilityController
	FeedbackController   controller.IFeedbackController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.OpsEmail,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS is optional infrastructure: analytics still lands in Postgres
	// through the in-process bus when it is down.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 3. Review Provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	reviewProvider := llmgen.NewGenerator(llmProvider)

	// 4. Repositories
	caseStates := memory.NewCaseStateRepository()
	snapshotRepo := implementation.NewSnapshotRepository(db)
	feedbackRepo := implementation.NewFeedbackRepository(db)
	analyticsRepo := implementation.NewAnalyticsEventRepository(db)

	// 5. Services
	publisherService := service.NewPublisherService(pubSub, cfg.App.AnalyticsTopic, natsPub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.AnalyticsTopic, analyticsRepo)

	reviewService := service.NewReviewService(
		caseStates,
		reviewProvider,
		snapshotRepo,
		publisherService,
		sysLogger,
	)
	capabilityService := service.NewCapabilityService(reviewProvider)
	feedbackService := service.NewFeedbackService(feedbackRepo, emailService, publisherService, sysLogger)

	// 6. Controllers
	return &Container{
		ReviewController:     controller.NewReviewController(reviewService),
		CapabilityController: controller.NewCapabilityController(capabilityService),
		FeedbackController:   controller.NewFeedbackController(feedbackService),

		ConsumerService: consumerService,
	}
}
