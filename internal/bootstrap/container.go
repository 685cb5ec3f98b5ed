package bootstrap

import (
	"context"
	"log"
	"time"

	"video-rag-be/internal/config"
	"video-rag-be/internal/controller"
	"video-rag-be/internal/handler"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/internal/pkg/serverutils"
	"video-rag-be/internal/repository/contract"
	"video-rag-be/internal/repository/implementation"
	"video-rag-be/internal/repository/memory"
	"video-rag-be/internal/service"
	"video-rag-be/pkg/blobcache"
	pktNats "video-rag-be/pkg/nats"
	"video-rag-be/pkg/progress"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RagController controller.IRagController
	StreamHandler *handler.StreamHandler

	// Auth guards the rag routes; it passes everything when JWT_SECRET is empty.
	Auth   fiber.Handler
	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. db may be nil, in which case
// answer history is kept in memory.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{
		Auth:   serverutils.JwtMiddleware(cfg.Keys.JWTSecret),
		Logger: sysLogger,
	}

	// 2. Infrastructure
	// Redis
	cache, rdb, err := blobcache.Connect(context.Background(), cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] %v. Falling back to in-memory image cache", err)
	}
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// NATS
	var publisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Progress bus
	bus := progress.NewBus(watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = bus.Close() })

	// History
	var history contract.InteractionRepository
	if db != nil {
		history = implementation.NewInteractionRepository(db)
	} else {
		log.Println("[INFO] No database configured, keeping answer history in memory")
		history = memory.NewInteractionRepository(24*time.Hour, 50)
	}

	// 3. Pipeline
	orchestrator, err := NewOrchestrator(cfg, cache, sysLogger)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 4. Services
	ragService := service.NewRagService(cache, cfg.Pipeline.CacheTTL, orchestrator, bus, history, publisher, sysLogger)

	// 5. Controllers & Handlers
	c.RagController = controller.NewRagController(ragService, sysLogger)
	c.StreamHandler = handler.NewStreamHandler(ragService, sysLogger)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
