package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// queryCmd runs an ad-hoc read-only SQL statement
var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "읽기 전용 SQL 조회",
	Long: `임의의 SQL을 읽기 전용 트랜잭션에서 실행하고 표로 출력합니다.
쓰기 문장은 데이터베이스가 거부합니다.

Example:
  go run ./cmd/quant query "SELECT date, index_price FROM data.index_performance ORDER BY date DESC LIMIT 5"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	table, err := a.store.Query(ctx, args[0])
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	PrintTable(table)
	return nil
}
