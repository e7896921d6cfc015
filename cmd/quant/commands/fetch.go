package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/s0_data/collector"
)

var (
	fetchFrom    string
	fetchTo      string
	fetchForce   bool
	fetchWorkers int
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "S0: 시장 데이터 수집",
	Long: `Polygon.io에서 가격과 종목 정보를 수집합니다.

Subcommands:
  prices   - 일별 가격 (grouped daily bars)
  tickers  - 종목 정보 (시가총액 포함)

무료 티어는 분당 5회 제한, 요청은 자동으로 간격 조절됩니다.`,
}

var fetchPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "구간 내 빠진 날짜의 가격 수집",
	Long: `구간 내 평일 중 가격이 없는 날짜만 수집합니다.
--force 이면 이미 있는 날짜도 다시 수집합니다.

Example:
  go run ./cmd/quant fetch prices --from 2024-01-02 --to 2024-01-31`,
	RunE: runFetchPrices,
}

var fetchTickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "유니버스 종목 정보 갱신",
	Long: `지수 정의의 유니버스(sp500 | polygon | static) 종목 정보를 갱신합니다.

Example:
  go run ./cmd/quant fetch tickers
  go run ./cmd/quant fetch tickers --workers 2 --force`,
	RunE: runFetchTickers,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchPricesCmd, fetchTickersCmd)

	fetchPricesCmd.Flags().StringVar(&fetchFrom, "from", "", "start date (YYYY-MM-DD)")
	fetchPricesCmd.Flags().StringVar(&fetchTo, "to", "", "end date (YYYY-MM-DD, default today)")

	fetchCmd.PersistentFlags().BoolVar(&fetchForce, "force", false, "refetch data that already exists")
	fetchCmd.PersistentFlags().IntVar(&fetchWorkers, "workers", collector.DefaultConfig().Workers, "concurrent fetches")
}

func fetchConfig() collector.Config {
	cfg := collector.DefaultConfig()
	cfg.Force = fetchForce
	if fetchWorkers > 0 {
		cfg.Workers = fetchWorkers
	}
	return cfg
}

func runFetchPrices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.parseRangeFlags(fetchFrom, fetchTo)
	if err != nil {
		return err
	}

	start := time.Now()
	PrintHeader(CommandHeader{Title: "S0: Fetch Prices", Period: &r})

	results, err := a.collector.BackfillPrices(ctx, r, fetchConfig())
	if err != nil {
		return fmt.Errorf("backfill prices: %w", err)
	}
	for _, res := range results {
		date := contracts.FormatDate(res.Date)
		switch {
		case res.Error != nil:
			PrintError(fmt.Sprintf("%s: %v", date, res.Error))
		case res.Skipped:
			fmt.Printf("   %s skipped (already loaded)\n", date)
		default:
			fmt.Printf("   %s %d bars\n", date, res.Rows)
		}
	}

	printFetchSummary("Prices", collector.Summarize(results))
	PrintCompletion(start)
	return nil
}

func runFetchTickers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	start := time.Now()
	PrintHeader(CommandHeader{Title: "S0: Fetch Tickers", Detail: "universe " + a.definition.Universe.Source})

	tickers, err := a.universe().Tickers(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	PrintInfo(fmt.Sprintf("%d tickers in universe", len(tickers)))

	results, err := a.collector.RefreshTickers(ctx, tickers, fetchConfig())
	if err != nil {
		return fmt.Errorf("refresh tickers: %w", err)
	}
	for _, res := range results {
		if res.Error != nil {
			PrintError(fmt.Sprintf("%s: %v", res.Ticker, res.Error))
		}
	}

	printFetchSummary("Tickers", collector.Summarize(results))
	PrintCompletion(start)
	return nil
}

func printFetchSummary(label string, s collector.Summary) {
	PrintSeparator()
	fmt.Printf("[%s] success=%d skipped=%d failed=%d rows=%d\n", label, s.Success, s.Skipped, s.Failed, s.Rows)
	if s.Failed > 0 {
		PrintWarning(fmt.Sprintf("%d fetches failed, rerun to retry", s.Failed))
	}
}
