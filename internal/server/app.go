// Package server exposes sessions and their dashboards over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/dune"
	"github.com/KaramelBytes/chainpulse/internal/ingest"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/gorilla/mux"
	"github.com/labstack/gommon/log"
)

// maxUpload bounds multipart uploads held in memory.
const maxUpload = 32 << 20

type App struct {
	Router   *mux.Router
	Sessions *session.Manager
	// Dune is optional; without it /api/sessions/dune answers 503.
	Dune   *dune.Client
	Ingest ingest.Options
}

// Initialize wires the router. sessions must not be nil.
func (a *App) Initialize(sessions *session.Manager, duneClient *dune.Client, opts ingest.Options) {
	a.Sessions = sessions
	a.Dune = duneClient
	a.Ingest = opts
	a.Router = mux.NewRouter().StrictSlash(true)
	a.initializeRoutes()
}

func (a *App) initializeRoutes() {
	a.Router.Use(recoverMiddleware)

	api := a.Router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/presets", a.listPresets).Methods("GET")
	api.HandleFunc("/sessions", a.createSession).Methods("POST")
	api.HandleFunc("/sessions/dune", a.createDuneSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", a.getSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", a.deleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/roles", a.setRoles).Methods("PUT")
	api.HandleFunc("/sessions/{id}/table", a.replaceTable).Methods("PUT")
	api.HandleFunc("/sessions/{id}/kpis", a.getKPIs).Methods("GET")
	api.HandleFunc("/sessions/{id}/timeseries", a.getTimeSeries).Methods("GET")
	api.HandleFunc("/sessions/{id}/top", a.getTop).Methods("GET")
	api.HandleFunc("/sessions/{id}/cohorts", a.getCohorts).Methods("GET")
	api.HandleFunc("/sessions/{id}/histogram", a.getHistogram).Methods("GET")
	api.HandleFunc("/sessions/{id}/dashboard", a.getDashboardHTML).Methods("GET")
	api.HandleFunc("/sessions/{id}/dashboard.json", a.getDashboard).Methods("GET")
	api.HandleFunc("/sessions/{id}/charts/{kind}.png", a.getChart).Methods("GET")
	api.HandleFunc("/sessions/{id}/ws", a.serveWS)
}

// Run serves until ctx is cancelled, sweeping idle sessions in the background.
func (a *App) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.Router, ReadHeaderTimeout: 10 * time.Second}
	go a.Sessions.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
