package healthserver

import (
	"context"
	"errors"
	"net/http"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP listener for the health controller
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

func NewServer(cfg config.ServerConfig, controller *HealthController, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	controller.RegisterRoutes(router)

	return &Server{
		srv: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: log.WithComponent("health_server"),
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Health server starting on " + s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
