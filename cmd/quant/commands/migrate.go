package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/store/migrations"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/database"
)

var migrateDryRun bool

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 마이그레이션 적용",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다.
모든 문장이 IF NOT EXISTS 이므로 반복 실행해도 안전합니다.

Example:
  go run ./cmd/quant migrate
  go run ./cmd/quant migrate --dry-run`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list migrations without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateDryRun {
		files, err := migrations.Files()
		if err != nil {
			return err
		}
		fmt.Println("Migrations:")
		for _, f := range files {
			fmt.Printf("  - %s\n", f)
		}
		return nil
	}

	// 인덱스 컴포넌트 없이 DB만 연결
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(cmd.Context(), db.Pool)
	for _, f := range applied {
		PrintSuccess(f)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	PrintInfo(fmt.Sprintf("%d migrations applied", len(applied)))
	return nil
}
