package notifier

import (
	"fmt"
	"html"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

// SignalLabel returns the display label of a signal.
func SignalLabel(s model.Signal) string {
	switch s {
	case model.SignalBullishCross:
		return "🟢 BULLISH CROSS"
	case model.SignalBearishCross:
		return "🔴 BEARISH CROSS"
	case model.SignalBullishTrend:
		return "🟡 BULLISH (Recent)"
	case model.SignalBearishTrend:
		return "🟠 BEARISH (Recent)"
	default:
		return "Neutral"
	}
}

// TrendLabel returns the display label of a trend.
func TrendLabel(t model.Trend) string {
	if t == model.TrendBullish {
		return "Bullish"
	}
	return "Bearish"
}

// FormatNumber renders v with a fixed number of decimals.
func FormatNumber(v float64, decimals int32) string {
	return decimal.NewFromFloat(v).StringFixed(decimals)
}

// FormatPrice renders a price with six decimals.
func FormatPrice(v float64) string {
	return FormatNumber(v, 6)
}

// PercentChange returns the change from previous to current in percent, 0 when previous is 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// FormatScanReport formats a finished scan into a Telegram message listing the crosses.
func FormatScanReport(rs *scanner.ResultSet) string {
	var b strings.Builder
	sum := rs.Summary()

	b.WriteString(fmt.Sprintf("📊 <b>EMA %d/%d scan</b> | %s %s | %s\n\n",
		rs.Params.FastPeriod, rs.Params.SlowPeriod, html.EscapeString(rs.Exchange),
		rs.Params.Timeframe, rs.FinishedAt.UTC().Format("2006-01-02 15:04")))
	b.WriteString(formatSummaryLines(sum))
	if rs.Partial {
		b.WriteString("⚠️ scan was interrupted, results are partial\n")
	}

	crosses := rs.Filter([]model.Signal{model.SignalBullishCross, model.SignalBearishCross}, model.AllTrends())
	if crosses.Len() == 0 {
		if sum.Found == 0 {
			b.WriteString("\nNo instrument passed the minimum-history filter.\n")
		} else {
			b.WriteString("\nNo crosses on the latest bar.\n")
		}
		return b.String()
	}
	b.WriteString("\n<b>Crosses:</b>\n")
	for _, r := range crosses.Records {
		b.WriteString(formatRecordLine(r))
	}
	return b.String()
}

// FormatSummary formats the headline counts of a scan.
func FormatSummary(rs *scanner.ResultSet) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Latest scan</b> | %s\n\n", rs.FinishedAt.UTC().Format(time.RFC3339)))
	b.WriteString(formatSummaryLines(rs.Summary()))
	b.WriteString(fmt.Sprintf("Duration: %s\n", rs.Duration().Round(time.Millisecond)))
	return b.String()
}

// FormatSignalList formats every record of rs under title, capped at max lines.
func FormatSignalList(title string, rs *scanner.ResultSet, max int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> (%d)\n\n", html.EscapeString(title), rs.Len()))
	if rs.Len() == 0 {
		b.WriteString("Nothing matches.\n")
		return b.String()
	}
	for i, r := range rs.Records {
		if max > 0 && i == max {
			b.WriteString(fmt.Sprintf("… and %d more\n", rs.Len()-max))
			break
		}
		b.WriteString(formatRecordLine(r))
	}
	return b.String()
}

func formatSummaryLines(s scanner.Summary) string {
	return fmt.Sprintf("Total Scanned: %d\nSignals Found: %d\nBullish/Bearish: %d/%d\n",
		s.Scanned, s.Found, s.Bullish, s.Bearish)
}

func formatRecordLine(r model.SignalRecord) string {
	return fmt.Sprintf("%s <code>%s</code> %s (gap %+.2f%%)\n",
		SignalLabel(r.Signal), html.EscapeString(r.Symbol), FormatPrice(r.Price), PercentChange(r.EMAFast, r.EMASlow))
}

// FormatSignal formats one record with both EMA values.
func FormatSignal(r model.SignalRecord, params model.ScanParameters) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> | %s\n\n", html.EscapeString(r.Symbol), params.Timeframe))
	b.WriteString(fmt.Sprintf("Price: %s\n", FormatPrice(r.Price)))
	b.WriteString(fmt.Sprintf("EMA%d: %s\n", params.FastPeriod, FormatPrice(r.EMAFast)))
	b.WriteString(fmt.Sprintf("EMA%d: %s\n", params.SlowPeriod, FormatPrice(r.EMASlow)))
	b.WriteString(fmt.Sprintf("Signal: %s\n", SignalLabel(r.Signal)))
	b.WriteString(fmt.Sprintf("Trend: %s (gap %+.2f%%)\n", TrendLabel(r.Trend), PercentChange(r.EMAFast, r.EMASlow)))
	return b.String()
}

// WriteTable prints records as an aligned text table.
func WriteTable(w io.Writer, rs *scanner.ResultSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SYMBOL\tPRICE\tEMA%d\tEMA%d\tSIGNAL\tTREND\n", rs.Params.FastPeriod, rs.Params.SlowPeriod)
	for _, r := range rs.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Symbol, FormatPrice(r.Price), FormatPrice(r.EMAFast), FormatPrice(r.EMASlow),
			SignalLabel(r.Signal), TrendLabel(r.Trend))
	}
	return tw.Flush()
}

// WriteChart prints a detail chart as an aligned text table.
func WriteChart(w io.Writer, c *model.Chart) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\tEMA%d\tEMA%d\n", c.FastPeriod, c.SlowPeriod)
	for _, p := range c.Points {
		dir := "▲"
		if !p.Rising {
			dir = "▼"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			p.Time.UTC().Format("2006-01-02 15:04"),
			FormatPrice(p.Open), FormatPrice(p.High), FormatPrice(p.Low), FormatPrice(p.Close),
			FormatNumber(p.Volume, 2), dir, FormatPrice(p.EMAFast), FormatPrice(p.EMASlow))
	}
	return tw.Flush()
}

// WriteSummary prints the headline counts without markup.
func WriteSummary(w io.Writer, rs *scanner.ResultSet) error {
	_, err := fmt.Fprintf(w, "\n%sDuration: %s\n", formatSummaryLines(rs.Summary()), rs.Duration().Round(time.Millisecond))
	return err
}
