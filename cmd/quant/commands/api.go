package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/api"
	"github.com/wonny/eqindex/internal/api/handlers"
	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/events"
	"github.com/wonny/eqindex/internal/pipeline"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 대시보드용 지수 조회 엔드포인트 제공
- 단계별 실행 트리거 제공
- 지수 이벤트 WebSocket 스트림 제공

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus metrics
  GET  /api/index/composition           - 최신 구성 종목
  GET  /api/index/performance           - 최신 성과
  GET  /api/index/performance/summary   - 성과 요약 통계
  GET  /api/index/changes               - 구성 변경 기록
  POST /api/index/{build,track,detect,run}
  GET  /ws/index                        - 이벤트 스트림

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1-7. Config, logger, store, clients, components
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("=== %s API Server ===\n", a.definition.Meta.Name)

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.logger

	// 8. Event stream: Redis relays events from every process, otherwise the hub is fed directly
	hub := handlers.NewHub(a.cfg.CORSAllowedOrigins, log)
	var publisher contracts.EventPublisher = hub
	if a.redis.Enabled() {
		stream, err := events.Subscribe(ctx, a.redis, log)
		if err != nil {
			return fmt.Errorf("subscribe events: %w", err)
		}
		go hub.Relay(ctx, stream)
		publisher = a.publisher
	}

	// 9. Create handler
	index := handlers.NewIndexHandler(handlers.IndexDeps{
		Reader:    a.store,
		Builder:   a.builder,
		Tracker:   a.tracker,
		Detector:  a.detector,
		Runner:    pipeline.NewRunner(a.gate, a.builder, a.tracker, a.detector, publisher, log),
		Analyzer:  a.analyzer,
		Publisher: publisher,
		Index:     a.cfg.Index,
		Now:       func() time.Time { return time.Now().In(a.location) },
	}, log)

	// 10. Create router
	router := api.NewRouter(a.cfg, index, hub, a.db, log)

	// 11. Create server
	server := api.New(a.cfg, log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// 12. Serve until interrupted, then shut down gracefully
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	log.Info("Server exited")
	return nil
}
