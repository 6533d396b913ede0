package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cartengine/internal/config"
	"cartengine/internal/handler"
	"cartengine/internal/middleware"
	"cartengine/internal/observability"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Health   *handler.HealthHandler
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *zap.Logger
}

// New はミドルウェアとルートを組み立てたechoを返す
func New(cfg config.Config, h Handlers, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(observability.ServiceName)))
	e.Use(middleware.RequestLogger(logger))

	RegisterRoutes(e, cfg, h)

	return &Server{echo: e, addr: cfg.Addr(), logger: logger}
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, cfg)
	h.Checkout.RegisterRoutes(e, cfg)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start はShutdownされるまでブロックする
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
