package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Routes builds the gateway's HTTP mux.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/realtime", g.HandleRealtime)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/query", g.handleQuery)
	if g.staticDir != "" {
		mux.Handle("/", spaHandler{dir: g.staticDir})
	}
	return mux
}

// Serve runs the gateway on addr until ctx is cancelled, then drains
// in-flight requests. Realtime sessions ride hijacked connections, so
// server-level read/write timeouts do not apply to them.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	g.logger.Info("gateway stopped")
	return nil
}
