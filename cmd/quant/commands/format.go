package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// CommandHeader holds what a command prints before it starts
type CommandHeader struct {
	Title  string
	Period *contracts.DateRange // Optional
	Date   *time.Time           // Optional
	Detail string               // Optional
}

// PrintHeader prints a formatted command header
func PrintHeader(h CommandHeader) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", h.Title)
	PrintSeparator()

	if h.Period != nil {
		fmt.Printf("  Period    : %s ~ %s\n", contracts.FormatDate(h.Period.Start), contracts.FormatDate(h.Period.End))
	}
	if h.Date != nil {
		fmt.Printf("  Date      : %s\n", contracts.FormatDate(*h.Date))
	}
	if h.Detail != "" {
		fmt.Printf("  Detail    : %s\n", h.Detail)
	}

	PrintSeparator()
	fmt.Printf("Started at %s\n", time.Now().Format("2006-01-02 15:04:05"))
}

// PrintCompletion prints the elapsed time of a command
func PrintCompletion(start time.Time) {
	fmt.Println()
	fmt.Printf("✅ Completed in %.2fs\n", time.Since(start).Seconds())
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTable prints a query result with columns sized to their content
func PrintTable(t *contracts.Table) {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := formatCell(v)
			cells[r][i] = s
			if i < len(widths) && len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	PrintTableHeader(t.Columns, widths)
	for _, row := range cells {
		PrintTableRow(row, widths)
	}
	fmt.Printf("(%d rows)\n", len(t.Rows))
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if x.Equal(contracts.NormalizeDate(x)) {
			return contracts.FormatDate(x)
		}
		return x.Format(time.RFC3339Nano)
	case float64:
		return fmt.Sprintf("%.6f", x)
	default:
		return fmt.Sprint(x)
	}
}

// PrintComposition prints one composition snapshot
func PrintComposition(s *contracts.CompositionSnapshot) {
	if s.IsEmpty() {
		PrintWarning(fmt.Sprintf("No composition for %s", contracts.FormatDate(s.Date)))
		return
	}

	widths := []int{8, 12, 10, 18}
	PrintTableHeader([]string{"Ticker", "Close", "Weight", "Market Cap"}, widths)
	for _, e := range s.Entries {
		PrintTableRow([]string{
			e.Ticker,
			fmt.Sprintf("%.2f", e.ClosePrice),
			fmt.Sprintf("%.6f", e.Weight),
			fmt.Sprintf("%.0f", e.MarketCap),
		}, widths)
	}
	PrintSeparator()
	PrintKeyValue("Constituents", fmt.Sprint(s.Len()), 12)
	PrintKeyValue("Weight sum", fmt.Sprintf("%.9f", s.WeightSum()), 12)
	PrintKeyValue("Run ID", s.RunID, 12)
}

// PrintPerformance prints a performance series
func PrintPerformance(s *contracts.PerformanceSeries) {
	if s.IsEmpty() {
		PrintWarning("No performance points, build a composition first")
		return
	}

	widths := []int{10, 14, 12}
	PrintTableHeader([]string{"Date", "Index Price", "Return %"}, widths)
	for _, p := range s.Points {
		PrintTableRow([]string{
			contracts.FormatDate(p.Date),
			fmt.Sprintf("%.6f", p.IndexPrice),
			fmt.Sprintf("%+.4f", p.DailyReturn),
		}, widths)
	}
	PrintSeparator()
	PrintKeyValue("Points", fmt.Sprint(s.Len()), 6)
	PrintKeyValue("Run ID", s.RunID, 6)
}

// PrintChanges prints detected composition changes
func PrintChanges(s *contracts.ChangeSeries) {
	if s.IsEmpty() {
		PrintInfo("No composition changes")
		return
	}

	for _, c := range s.Records {
		if c.IsInitial() {
			fmt.Printf("📌 %s  initial set (%d tickers)\n", contracts.FormatDate(c.Date), len(contracts.SplitSymbols(c.Symbols)))
			continue
		}
		fmt.Printf("🔄 %s  vs %s\n", contracts.FormatDate(c.Date), contracts.FormatDate(*c.PrevDate))
		if added := c.Added(); len(added) > 0 {
			fmt.Printf("   + %s\n", strings.Join(added, ", "))
		}
		if removed := c.Removed(); len(removed) > 0 {
			fmt.Printf("   - %s\n", strings.Join(removed, ", "))
		}
	}
	PrintSeparator()
	PrintKeyValue("Detected", fmt.Sprint(s.Len()), 8)
	PrintKeyValue("Appended", fmt.Sprint(s.Appended), 8)
}
