// Package handler は監視モードで公開するHTTPエンドポイントを提供する。
// バッチ実行そのものにHTTP面は不要だが、監視モードでは死活確認と
// Prometheusスクレイプのために /health と /metrics を公開する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/slotwatch/internal/metrics"
	"github.com/hitoshi/slotwatch/internal/middleware"
)

// HealthChecker はヘルスチェック対象のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// NewRouter は監視モード用のルーターを構築する。
func NewRouter(health HealthChecker, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := health.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	return r
}
