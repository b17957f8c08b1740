package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Healthy    bool `json:"healthy"`
	NodesTotal int  `json:"nodes_total"`
	NodesAlive int  `json:"nodes_alive"`
}

// newStatusRouter builds the controller's HTTP surface: a cheap
// process-liveness health check, the full status report (which probes
// node RPC endpoints), and prometheus metrics.
func newStatusRouter(ctrl *Controller) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		healthy, total, alive := ctrl.Healthy()

		resp := healthResponse{
			Healthy:    healthy,
			NodesTotal: total,
			NodesAlive: alive,
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		report := ctrl.StatusReport(req.Context())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// runStatusServer serves the controller's HTTP surface until ctx is
// cancelled, then shuts down gracefully.
func runStatusServer(ctx context.Context, conf config, ctrl *Controller) error {
	srv := &http.Server{
		Addr:    conf.listenAddress,
		Handler: newStatusRouter(ctrl),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) // graceful shutdown
	}()

	log.Printf("Listening on %s", srv.Addr)
	return srv.ListenAndServe()
}
