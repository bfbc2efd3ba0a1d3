package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	authUsecase "mentorhub-backend/internal/auth/usecase"
	schedulerDelivery "mentorhub-backend/internal/scheduler/delivery"
	"mentorhub-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	triggerHandler *schedulerDelivery.TriggerHandler
	config         *config.Config

	mu     sync.Mutex
	server *http.Server
}

func NewHandler(authUc authUsecase.AuthUsecase, runner schedulerDelivery.TriggerRunner, changes schedulerDelivery.ChangeProcessor, kpiTrigger string, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:    authUc,
		triggerHandler: schedulerDelivery.NewTriggerHandler(runner, changes, kpiTrigger),
		config:         cfg,
	}
}

// Router builds the HTTP handler: gin routes behind CORS
func (h *Handler) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	SetupRoutes(r, h.authUsecase, h.triggerHandler)

	return cors.New(cors.Options{
		AllowedOrigins:   h.config.CORSAllowOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		ExposedHeaders:   []string{"X-Run-ID"},
		AllowCredentials: true,
	}).Handler(r)
}

// Start serves until Shutdown is called
func (h *Handler) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.mu.Lock()
	h.server = srv
	h.mu.Unlock()

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
