package http

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
)

// Serve levanta el server de la API y el de métricas, y apaga ambos con
// gracia cuando ctx se cancela.
func Serve(ctx context.Context, addr, metricsAddr string, handler, metricsHandler http.Handler) error {
	apiSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Timeout duro por request: ninguna operación del core debería
		// exceder un cómputo CPU-bound acotado.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("api listening", logger.String("addr", addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.L().Info("metrics listening", logger.String("addr", metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		return apiSrv.Shutdown(shutCtx)
	})

	return g.Wait()
}
