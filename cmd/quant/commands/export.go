package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/reporting"
)

var (
	exportFrom string
	exportTo   string
	exportDir  string
)

// exportCmd writes the latest table versions as CSV
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "지수 테이블 CSV 내보내기",
	Long: `구간 내 최신 버전의 성과, 구성, 변경 기록을 CSV로 저장합니다.

생성 파일:
  index_performance.csv
  index_composition.csv
  index_composition_changes.csv

Example:
  go run ./cmd/quant export --from 2024-01-02 --to 2024-01-31 --dir data/csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFrom, "from", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "end date (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default EXPORT_DIR)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.parseRangeFlags(exportFrom, exportTo)
	if err != nil {
		return err
	}
	dir := exportDir
	if dir == "" {
		dir = a.cfg.ExportDir
	}

	start := time.Now()
	PrintHeader(CommandHeader{Title: "Export CSV", Period: &r, Detail: dir})

	results, err := reporting.NewExporter(a.store, dir, a.logger).ExportAll(ctx, r)
	for _, res := range results {
		if res.Path == "" {
			PrintWarning(fmt.Sprintf("%s: no rows", res.Table))
			continue
		}
		PrintSuccess(fmt.Sprintf("%s: %d rows → %s", res.Table, res.Rows, res.Path))
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	PrintCompletion(start)
	return nil
}
