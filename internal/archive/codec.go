package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epeers/etfarchive/internal/models"
)

// Surface schemas. The latest surface is per-fund so it omits fund_ticker;
// the dated aggregate adds it; the ledger additionally carries status.
var (
	latestHeader = []string{"ticker", "name", "weight_pct", "rank", "as_of_date", "date_confidence"}
	datedHeader  = []string{"fund_ticker", "ticker", "name", "weight_pct", "rank", "as_of_date", "date_confidence"}
	ledgerHeader = []string{"fund_ticker", "ticker", "name", "weight_pct", "rank", "as_of_date", "date_confidence", "status"}
)

func latestRow(r models.HoldingRecord) []string {
	return []string{r.Ticker, r.Name, formatWeight(r.WeightPct), strconv.Itoa(r.Rank), r.AsOfDate.String(), string(r.DateConfidence)}
}

func datedRow(r models.HoldingRecord) []string {
	return append([]string{r.FundTicker}, latestRow(r)...)
}

func ledgerRow(r models.HoldingRecord) []string {
	return append(datedRow(r), string(r.Status))
}

// formatWeight keeps the issuer-reported precision: no padding, no rounding.
func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// decodeRows parses one surface file back into records. The fund argument
// fills FundTicker for the latest surface, whose schema omits it.
func decodeRows(r io.Reader, header []string, fund string) ([]models.HoldingRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	got, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if strings.Join(got, ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("unexpected CSV header %q", strings.Join(got, ","))
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var records []models.HoldingRecord
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to read CSV record: %w", rowNum+1, err)
		}
		rowNum++

		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		weight, err := strconv.ParseFloat(field("weight_pct"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad weight_pct %q", rowNum, field("weight_pct"))
		}
		rank, err := strconv.Atoi(field("rank"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad rank %q", rowNum, field("rank"))
		}
		asOf, err := models.ParseDate(field("as_of_date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		rec := models.HoldingRecord{
			FundTicker:     fund,
			Ticker:         field("ticker"),
			Name:           field("name"),
			WeightPct:      weight,
			Rank:           rank,
			AsOfDate:       asOf,
			DateConfidence: models.DateConfidence(field("date_confidence")),
			Status:         models.StatusExisting,
		}
		if _, ok := col["fund_ticker"]; ok {
			rec.FundTicker = field("fund_ticker")
		}
		if _, ok := col["status"]; ok {
			rec.Status = models.HoldingStatus(field("status"))
		}
		records = append(records, rec)
	}

	return records, nil
}

func encodeRows(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
