package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MaxIssueSamples caps how many offending rows are kept in a ParseResult.
const MaxIssueSamples = 10

var (
	ErrEmptyInput     = errors.New("dataset: csv has no header row")
	ErrMissingColumns = errors.New("dataset: csv header lacks required columns")
)

// Canonical column keys. Header cells are matched after lower-casing and
// dropping spaces, underscores and hyphens, so "TransactionID",
// "transactionid" and "transaction_id" all resolve to colTransactionID.
const (
	colTransactionID = "transactionid"
	colUserID        = "userid"
	colAmount        = "amount"
	colTimestamp     = "timestamp"
	colLocation      = "location"
	colDeviceID      = "deviceid"
	colType          = "transactiontype"
	colFraudLabel    = "fraudlabel"
)

var columnAliases = map[string]string{
	"id": colTransactionID,
}

// ParseIssue describes one problematic input row.
type ParseIssue struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

// ParseResult is the outcome of parsing a CSV export.
type ParseResult struct {
	Records      []Record `json:"-"`
	Success      bool     `json:"success"`
	RowCount     int      `json:"rowCount"`
	LabeledCount int      `json:"labeledCount"`

	// SkippedCount rows were dropped; Errors holds up to MaxIssueSamples of them.
	SkippedCount int          `json:"skippedCount"`
	Errors       []ParseIssue `json:"errors"`

	// WarningCount rows were kept with a substituted value.
	WarningCount int          `json:"warningCount"`
	Warnings     []ParseIssue `json:"warnings"`
}

func (r *ParseResult) addError(line int, format string, args ...any) {
	r.SkippedCount++
	if len(r.Errors) < MaxIssueSamples {
		r.Errors = append(r.Errors, ParseIssue{Line: line, Message: fmt.Sprintf(format, args...)})
	}
}

func (r *ParseResult) addWarning(line int, format string, args ...any) {
	r.WarningCount++
	if len(r.Warnings) < MaxIssueSamples {
		r.Warnings = append(r.Warnings, ParseIssue{Line: line, Message: fmt.Sprintf(format, args...)})
	}
}

func canonicalColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name)
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

// Parse reads CSV text with a header row into transaction records.
//
// Rows without a usable timestamp or transaction type are dropped and
// reported in Errors. An unparseable amount is replaced by 0 and an invalid
// fraud label leaves the row unlabeled; both are reported in Warnings.
// Only a missing header or missing required columns fail the whole parse.
func Parse(r io.Reader) (ParseResult, error) {
	var res ParseResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, ErrEmptyInput
		}
		return res, fmt.Errorf("dataset: failed to read csv header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		key := canonicalColumn(col)
		if _, dup := colIndex[key]; !dup {
			colIndex[key] = i
		}
	}
	var missing []string
	for _, required := range []string{colTimestamp, colType} {
		if _, ok := colIndex[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	get := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	for {
		row, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if errors.As(readErr, &perr) {
				res.addError(perr.Line, "malformed csv row: %v", perr.Err)
				continue
			}
			return res, fmt.Errorf("dataset: failed to read csv: %w", readErr)
		}
		line, _ := reader.FieldPos(0)

		if isBlank(row) {
			continue
		}

		rec, ok := parseRow(row, line, get, &res)
		if !ok {
			continue
		}
		res.Records = append(res.Records, rec)
		if rec.HasLabel {
			res.LabeledCount++
		}
	}

	res.RowCount = len(res.Records)
	res.Success = res.RowCount > 0
	return res, nil
}

// ParseString is Parse over an in-memory CSV document.
func ParseString(s string) (ParseResult, error) {
	return Parse(strings.NewReader(s))
}

func parseRow(row []string, line int, get func([]string, string) string, res *ParseResult) (Record, bool) {
	rawTS := get(row, colTimestamp)
	txType := get(row, colType)
	if rawTS == "" {
		res.addError(line, "missing timestamp")
		return Record{}, false
	}
	if txType == "" {
		res.addError(line, "missing transaction type")
		return Record{}, false
	}
	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		res.addError(line, "%v", err)
		return Record{}, false
	}

	rec := Record{
		TransactionID:   get(row, colTransactionID),
		UserID:          get(row, colUserID),
		Timestamp:       ts,
		Location:        get(row, colLocation),
		DeviceID:        get(row, colDeviceID),
		TransactionType: txType,
	}

	rawAmount := get(row, colAmount)
	switch amount, err := strconv.ParseFloat(rawAmount, 64); {
	case rawAmount == "":
		res.addWarning(line, "missing amount, using 0")
	case err != nil || math.IsNaN(amount) || math.IsInf(amount, 0):
		res.addWarning(line, "invalid amount %q, using 0", rawAmount)
	case amount < 0:
		res.addWarning(line, "negative amount %v, using 0", amount)
	default:
		rec.Amount = amount
	}

	if rawLabel := get(row, colFraudLabel); rawLabel != "" {
		label, ok := parseLabel(rawLabel)
		if ok {
			rec.FraudLabel = label
			rec.HasLabel = true
		} else {
			res.addWarning(line, "fraud label %q is not 0 or 1, row left unlabeled", rawLabel)
		}
	}

	return rec, true
}

func parseLabel(s string) (int, bool) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		switch f {
		case 0:
			return 0, true
		case 1:
			return 1, true
		}
		return 0, false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
