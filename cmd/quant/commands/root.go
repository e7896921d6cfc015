package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	definitionPath string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "eqindex - 동일가중 합성 지수 엔진",
	Long: `eqindex Unified CLI

시가총액 상위 N 종목을 동일가중으로 묶은 합성 지수를 계산합니다.
구성(S1) → 성과(S2) → 변경 감지(S3), 모든 결과는 버전 저장소에 추가 기록.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant migrate
  go run ./cmd/quant fetch prices --from 2024-01-02 --to 2024-01-31
  go run ./cmd/quant run --date 2024-01-31
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C cancels the command context so long runs stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&definitionPath, "index-config", "", "index definition YAML (default is INDEX_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
