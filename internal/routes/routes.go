package routes

import (
	"context"
	"fmt"
	"log"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/config"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/handlers"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/middleware"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/models"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/realtime"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/repository"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	chatws "github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires every repository, service and handler onto app and
// starts the realtime sources. Background work stops when ctx is cancelled.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool) error {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	groupRepo := repository.NewGroupAppointmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	manager := realtime.NewManager(cfg.RealtimeDebounce)
	pgListener := realtime.NewPGListener(db, realtime.NotifyChannel)
	go func() {
		if err := pgListener.Run(ctx, manager.Dispatch); err != nil && ctx.Err() == nil {
			log.Printf("realtime: postgres listener stopped: %v", err)
		}
	}()

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		bridge := realtime.NewRedisBridge(redisClient)
		manager.SetBridge(bridge)
		go func() {
			if err := bridge.Run(ctx, manager.Dispatch); err != nil && ctx.Err() == nil {
				log.Printf("realtime: redis bridge stopped: %v", err)
			}
		}()
	}

	chatHub := chatws.NewHub()
	go chatHub.Run(ctx)

	broadcasters := []services.MessageBroadcaster{chatHub}
	if cfg.AblyKey != "" {
		ablyPublisher, err := realtime.NewAblyPublisher(cfg.AblyKey)
		if err != nil {
			return fmt.Errorf("create ably client: %w", err)
		}
		broadcasters = append(broadcasters, ablyPublisher)
	}

	go func() {
		<-ctx.Done()
		manager.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	chatService := services.NewChatService(conversationRepo, messageRepo, userRepo, services.ChatServiceOptions{
		Timeout:          cfg.BackendTimeout,
		ReplicationDelay: cfg.ReplicationDelay,
		Changes:          manager,
		Broadcasters:     broadcasters,
	})
	notificationService := services.NewNotificationService(
		appointmentRepo,
		scheduleRepo,
		userRepo,
		groupRepo,
		notificationRepo,
		cfg.BackendTimeout,
	)
	bookingService := services.NewBookingService(db, scheduleRepo, appointmentRepo, groupRepo, userRepo, cfg.BackendTimeout)

	var completions services.CompletionClient
	if cfg.ChatbotLLMEnabled() {
		completions = services.NewHTTPCompletionClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.BackendTimeout)
	}
	chatbotService := services.NewChatbotService(completions)
	screenService := services.NewScreenService(manager, chatService, notificationService)

	chatHandler := handlers.NewChatHandler(chatService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	chatbotHandler := handlers.NewChatbotHandler(chatbotService)
	screenHandler := handlers.NewScreenHandler(screenService, chatService, chatHub, cfg.JWTSecret)

	api := app.Group("/api")

	// Registered ahead of the protected group: sockets authenticate with a
	// token query parameter instead of the Authorization header.
	api.Get("/v1/ws", screenHandler.WebSocketAuth, websocket.New(screenHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/thread", chatHandler.GetThread)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.ListNotifications)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	slots := authProtected.Group("/slots")
	slots.Get("", bookingHandler.ListSlots)
	slots.Post("/:id/book", middleware.RequireRole(models.RoleUser), bookingHandler.BookSlot)

	appointments := authProtected.Group("/appointments", middleware.RequireRole(models.RoleCounselor))
	appointments.Put("/:id/status", bookingHandler.UpdateAppointmentStatus)
	appointments.Post("/:id/members", bookingHandler.AddGroupMember)

	authProtected.Post("/chatbot", chatbotHandler.Reply)

	return nil
}
