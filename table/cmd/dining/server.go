//go:build !solution

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/OIS202/COMP346A3-Dining-Philosophers/monitor"
	"github.com/OIS202/COMP346A3-Dining-Philosophers/table"
)

// zapMiddleware логирует каждый запрос после обработки
func zapMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request processed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered",
			zap.Any("error", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// newRouter serves the session metrics and a live monitor snapshot.
func newRouter(logger *zap.Logger, mon *monitor.Monitor, metrics *table.Metrics) *gin.Engine {
	router := gin.New()
	// Recovery должен быть первым
	router.Use(recoveryMiddleware(logger))
	router.Use(zapMiddleware(logger))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	router.GET("/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, mon.Snapshot())
	})
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return router
}

type probeServer struct {
	srv    *http.Server
	logger *zap.Logger
	errCh  chan error
}

func startProbeServer(addr string, handler http.Handler, logger *zap.Logger) *probeServer {
	p := &probeServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		errCh:  make(chan error, 1),
	}

	go func() {
		logger.Info("starting probe server", zap.String("addr", addr))
		if err := p.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("probe server failed", zap.Error(err))
			p.errCh <- err
		}
		close(p.errCh)
	}()
	return p
}

// shutdown waits for ctx to be done (or for the server to fail) and then
// stops the server gracefully.
func (p *probeServer) shutdown(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case err, ok := <-p.errCh:
		if ok {
			return err
		}
		return nil
	}

	p.logger.Info("shutting down probe server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Error("probe server shutdown error", zap.Error(err))
		return err
	}
	p.logger.Info("probe server stopped")
	return nil
}
