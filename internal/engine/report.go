package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
)

// PrintReport writes the run summary to w in a human-readable block.
func PrintReport(w io.Writer, result *Result) {
	fmt.Fprintln(w, "===== Backtest Report =====")
	fmt.Fprintf(w, "Period:               %s -> %s\n", result.Start.Format("2006-01-02"), result.End.Format("2006-01-02"))
	fmt.Fprintf(w, "Initial Capital:      %s\n", result.InitialCapital)
	fmt.Fprintf(w, "Final Value:          %s\n", result.FinalValue)
	fmt.Fprintf(w, "Total Trades:         %d\n", result.TotalTrades)

	fmt.Fprintln(w, "\n-- Returns --")
	fmt.Fprintf(w, "Total Return:         %s\n", result.TotalReturn)
	fmt.Fprintf(w, "Annualized Return:    %s\n", result.AnnualizedReturn)

	fmt.Fprintln(w, "\n-- Risk --")
	fmt.Fprintf(w, "Volatility:           %s\n", result.Volatility)
	fmt.Fprintf(w, "Sharpe Ratio:         %s\n", result.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown:         %s\n", result.MaxDrawdown)

	fmt.Fprintln(w, "\n-- Trades --")
	fmt.Fprintf(w, "Win Rate:             %s\n", result.WinRate)
	fmt.Fprintf(w, "Total Fees:           %s\n", result.TotalFees)
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-22s%s\n", name+":", result.Metrics[name])
	}
	fmt.Fprintln(w, "===========================")
}

// PrintTrades renders the trade log as a console table.
func PrintTrades(w io.Writer, result *Result) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Time", "Instrument", "Side", "Qty", "Price", "Fee", "Realized PnL")

	for i, t := range result.Trades {
		pnl := ""
		if t.Closing {
			pnl = t.RealizedPnL.StringFixed(4)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Timestamp.Format("2006-01-02 15:04"),
			t.Instrument,
			string(t.Side),
			t.Quantity.StringFixed(2),
			t.Price.StringFixed(4),
			t.Commission.StringFixed(4),
			pnl,
		)
	}
	table.Render()
}

// WriteTradesCSVFile writes the trade log to a CSV file at the given
// path, for spreadsheet inspection of a single run.
func WriteTradesCSVFile(path string, result *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return WriteTradesCSV(f, result)
}

// WriteTradesCSV writes trades to any io.Writer as CSV.
func WriteTradesCSV(w io.Writer, result *Result) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"trade_id",
		"instrument",
		"side",
		"quantity",
		"price",
		"commission",
		"closing",
		"realized_pnl",
		"timestamp", // RFC3339
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range result.Trades {
		record := []string{
			t.ID,
			t.Instrument,
			string(t.Side),
			t.Quantity.String(),
			t.Price.String(),
			t.Commission.String(),
			fmt.Sprintf("%t", t.Closing),
			t.RealizedPnL.String(),
			t.Timestamp.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteResultJSON serializes the full result for the reporting layer.
func WriteResultJSON(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
