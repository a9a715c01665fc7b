package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aryanjadon13-code/Technest/internal/domain/catalog"
	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
	"github.com/aryanjadon13-code/Technest/internal/infra/broker/kafka"
	"github.com/aryanjadon13-code/Technest/internal/infra/config"
	mongodb "github.com/aryanjadon13-code/Technest/internal/infra/db/mongo"
	ginserver "github.com/aryanjadon13-code/Technest/internal/infra/http/gin"
	"github.com/aryanjadon13-code/Technest/internal/infra/obs"
	"github.com/aryanjadon13-code/Technest/internal/infra/storage/memory"
	"github.com/aryanjadon13-code/Technest/internal/infra/storage/scylla"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	store, log, ready, closeStore, err := buildChatBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("chat backend init failed", "backend", cfg.ChatBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	items := memory.NewItemRepository()
	if err := loadItemFixtures(ctx, items, fixturesPath(cfg.ItemFixtures, "items.json"), logger); err != nil {
		logger.Warn("item fixtures load failed", "error", err)
	}
	resolver := memory.NewTokenResolver()
	if err := loadUserFixtures(resolver, fixturesPath(cfg.UserFixtures, "users.json"), logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err)
	}

	chatHandler := ginserver.ChatHandler{
		Catalog:       items,
		Store:         store,
		Log:           log,
		Sends:         chat.NewSendPipeline(store, log, cfg.ChatPreviewMax),
		Notifier:      notifier,
		Logger:        logger,
		EnsureRetries: cfg.ChatRetries,
		RetryBackoff:  cfg.ChatBackoff,
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: ready,
	}, ginserver.Handlers{
		Chat:           chatHandler,
		AuthMiddleware: ginserver.AuthMiddleware{Resolver: resolver, Logger: logger}.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "backend", cfg.ChatBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildChatBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (chat.ConversationStore, chat.MessageLog, func() error, func(), error) {
	switch cfg.ChatBackend {
	case config.BackendMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		chatStore := mongodb.NewChatStore(client.DB, logger)
		if err := chatStore.EnsureIndexes(ctx); err != nil {
			return nil, nil, nil, nil, err
		}
		closer := func() {
			chatStore.Close()
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}
		return chatStore, chatStore, func() error { return client.Ping(context.Background()) }, closer, nil
	case config.BackendScylla:
		session, err := scylla.NewSession(cfg, logger)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		chatStore := scylla.NewStore(session, logger)
		closer := func() {
			chatStore.Close()
			session.Close()
		}
		return chatStore, chatStore, func() error { return nil }, closer, nil
	default:
		chatStore := memory.NewChatStore(logger)
		return chatStore, chatStore, func() error { return nil }, chatStore.Close, nil
	}
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (chat.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return chat.NopNotifier{}, func() {}
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Warn("kafka producer init failed, chat events disabled", "error", err)
		return chat.NopNotifier{}, func() {}
	}
	logger.Info("kafka producer connected", "brokers", cfg.KafkaBrokers)
	notifier := &kafka.Notifier{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Logger:      logger,
	}
	return notifier, func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
}

type itemFixture struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SellerID      string `json:"seller_id"`
	SellerContact string `json:"seller_contact"`
}

type userFixture struct {
	ID      string `json:"id"`
	Contact string `json:"contact"`
	Token   string `json:"token"`
}

func loadItemFixtures(ctx context.Context, repo *memory.ItemRepository, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("item fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []itemFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		item := catalog.Item{
			ID:            fx.ID,
			Title:         fx.Title,
			SellerID:      fx.SellerID,
			SellerContact: fx.SellerContact,
		}
		if !item.Valid() {
			logger.Error("item fixture invalid", "item_id", fx.ID)
			continue
		}
		if err := repo.Save(ctx, item); err != nil {
			logger.Error("cannot store fixture item", "item_id", fx.ID, "error", err)
			continue
		}
		logger.Info("item fixture imported", "item_id", item.ID)
	}
	return nil
}

func loadUserFixtures(resolver *memory.TokenResolver, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("user fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []userFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		resolver.Register(fx.Token, identity.Identity{ID: fx.ID, Contact: fx.Contact})
	}
	logger.Info("user fixtures imported", "count", len(fixtures))
	return nil
}

func fixturesPath(configured, name string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join("data", name)
}
