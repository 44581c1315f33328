package wire

import (
	"Converge/internal/api"
	"Converge/internal/api/config"
	"Converge/internal/api/handler"
	"Converge/internal/job"
	"Converge/internal/pkg/cron"
	"Converge/internal/pkg/es"
	"Converge/internal/pkg/kafka"
	mongoPkg "Converge/internal/pkg/mongo"
	redisPkg "Converge/internal/pkg/redis"
	"Converge/internal/repository"
	"Converge/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	mongoDriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	Producer     *kafka.Producer
	CronMgr      *cron.Manager
	InboxService service.InboxService
}

func BuildApplication(db *gorm.DB, mongoDB *mongoDriver.Database, cfg *config.Config) (*ApplicationContainer, error) {
	convRepo := repository.NewConversationRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	noteRepo := repository.NewNoteRepo(db)
	eventRepo := repository.NewEventRepo(db)

	messageRepo := mongoPkg.NewMessageRepo(mongoDB)
	searchRepo := es.NewMessageRepo(es.Client)

	typingStore := redisPkg.NewTypingStore(redisPkg.GetRdbClient())
	draftStore := redisPkg.NewDraftStore(redisPkg.GetRdbClient())
	dedupStore := redisPkg.NewDedupStore(redisPkg.GetRdbClient())

	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}

	publisher := service.NewEventPublisher()
	deliveryService := service.NewDeliveryService(messageRepo, publisher)
	conversationService := service.NewConversationService(convRepo, noteRepo, eventRepo, publisher)
	typingService := service.NewTypingService(typingStore, publisher,
		time.Duration(cfg.Inbox.TypingTTLSeconds)*time.Second)
	draftService := service.NewDraftService(draftStore)
	inboxService := service.NewInboxService(
		convRepo, customerRepo, noteRepo, eventRepo,
		messageRepo, searchRepo, dedupStore,
		producer, publisher, deliveryService,
		cfg.Inbox.DefaultPageSize,
	)

	handlers := &api.HandlersGroup{
		InboxHandler:        handler.NewInboxHandler(inboxService),
		ConversationHandler: handler.NewConversationHandler(inboxService, conversationService),
		MessageHandler:      handler.NewMessageHandler(inboxService),
		TypingHandler:       handler.NewTypingHandler(typingService),
		DraftHandler:        handler.NewDraftHandler(draftService),
		MediaHandler:        handler.NewMediaHandler(),
		WSHandler:           handler.NewWsHandler(),
	}

	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, inboxService, deliveryService)
	if err != nil {
		return nil, err
	}

	snoozeJob := job.NewSnoozeJob(convRepo, eventRepo, publisher)
	cronMgr := cron.NewCronManager(snoozeJob)

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		KafkaManager: kafkaMgr,
		Producer:     producer,
		CronMgr:      cronMgr,
		InboxService: inboxService,
	}, nil
}
