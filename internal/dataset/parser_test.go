package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParse_PascalCaseHeader(t *testing.T) {
	csvContent := `TransactionID,UserID,Amount,Timestamp,Location,DeviceID,TransactionType,FraudLabel
T1,U1,1500.50,2024-03-01T10:15:00,Delhi,D1,P2P,0
T2,U2,25000,2024-03-02T02:30:00Z,Mumbai,D2,Transfer,1`

	res, err := ParseString(csvContent)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !res.Success || res.RowCount != 2 || res.LabeledCount != 2 {
		t.Fatalf("unexpected summary: %+v", res)
	}

	want := Record{
		TransactionID:   "T1",
		UserID:          "U1",
		Amount:          1500.50,
		Timestamp:       time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC),
		Location:        "Delhi",
		DeviceID:        "D1",
		TransactionType: "P2P",
		FraudLabel:      0,
		HasLabel:        true,
	}
	if res.Records[0] != want {
		t.Errorf("record[0] = %+v, want %+v", res.Records[0], want)
	}
	if res.Records[1].FraudLabel != 1 || res.Records[1].Timestamp.Hour() != 2 {
		t.Errorf("record[1] = %+v", res.Records[1])
	}
}

func TestParse_LowercaseAndSnakeCaseHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"lowercase", "transactionid,amount,timestamp,location,deviceid,transactiontype,fraudlabel"},
		{"snake_case", "transaction_id,amount,timestamp,location,device_id,transaction_type,fraud_label"},
		{"id alias", "id,amount,timestamp,location,deviceid,transactiontype,fraudlabel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseString(tt.header + "\nX9,99,2024-01-05 08:00:00,Pune,D7,Merchant,1\n")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if res.RowCount != 1 {
				t.Fatalf("RowCount = %d, want 1", res.RowCount)
			}
			r := res.Records[0]
			if r.TransactionID != "X9" || r.Amount != 99 || r.Location != "Pune" ||
				r.DeviceID != "D7" || r.TransactionType != "Merchant" || !r.HasLabel || r.FraudLabel != 1 {
				t.Errorf("unexpected record %+v", r)
			}
		})
	}
}

func TestParse_DropsRowsWithoutTimestampOrType(t *testing.T) {
	csvContent := `Amount,Timestamp,TransactionType
10,2024-01-01T00:00:00,P2P
20,,P2P
30,2024-01-01T00:00:00,
40,not-a-date,P2P

50,2024-01-02,Merchant`

	res, err := ParseString(csvContent)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}
	if res.SkippedCount != 3 || len(res.Errors) != 3 {
		t.Errorf("SkippedCount = %d, errors = %v, want 3", res.SkippedCount, res.Errors)
	}
	if res.Errors[0].Line != 3 || !strings.Contains(res.Errors[0].Message, "timestamp") {
		t.Errorf("first error = %v, want line 3 missing timestamp", res.Errors[0])
	}
	if res.LabeledCount != 0 {
		t.Errorf("LabeledCount = %d, want 0", res.LabeledCount)
	}
}

func TestParse_AmountAndLabelCoercion(t *testing.T) {
	csvContent := `Amount,Timestamp,TransactionType,FraudLabel
abc,2024-01-01T00:00:00,P2P,1
,2024-01-01T00:00:00,P2P,0
12.5,2024-01-01T00:00:00,P2P,2
12.5,2024-01-01T00:00:00,P2P,
12.5,2024-01-01T00:00:00,P2P,true`

	res, err := ParseString(csvContent)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.RowCount != 5 {
		t.Fatalf("RowCount = %d, want 5", res.RowCount)
	}
	if res.Records[0].Amount != 0 || res.Records[1].Amount != 0 {
		t.Errorf("unparseable amounts should default to 0, got %v and %v", res.Records[0].Amount, res.Records[1].Amount)
	}
	if res.Records[2].HasLabel {
		t.Error("label 2 should leave the row unlabeled")
	}
	if res.Records[3].HasLabel {
		t.Error("empty label should leave the row unlabeled")
	}
	if !res.Records[4].HasLabel || res.Records[4].FraudLabel != 1 {
		t.Errorf("label true should map to 1, got %+v", res.Records[4])
	}
	if res.LabeledCount != 3 {
		t.Errorf("LabeledCount = %d, want 3", res.LabeledCount)
	}
	if res.WarningCount != 3 {
		t.Errorf("WarningCount = %d, want 3 (%v)", res.WarningCount, res.Warnings)
	}
}

func TestParse_RejectsNonFiniteAndNegativeAmounts(t *testing.T) {
	csvContent := `Amount,Timestamp,TransactionType
NaN,2024-01-01T00:00:00,P2P
Inf,2024-01-01T00:00:00,P2P
-infinity,2024-01-01T00:00:00,P2P
-250,2024-01-01T00:00:00,P2P
75,2024-01-01T00:00:00,P2P`

	res, err := ParseString(csvContent)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.RowCount != 5 {
		t.Fatalf("RowCount = %d, want 5", res.RowCount)
	}
	for i, r := range res.Records[:4] {
		if r.Amount != 0 {
			t.Errorf("record %d amount = %v, want 0", i, r.Amount)
		}
	}
	if res.Records[4].Amount != 75 {
		t.Errorf("record 4 amount = %v, want 75", res.Records[4].Amount)
	}
	if res.WarningCount != 4 {
		t.Errorf("WarningCount = %d, want 4 (%v)", res.WarningCount, res.Warnings)
	}
}

func TestParse_IssueSamplesAreCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("Amount,Timestamp,TransactionType\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "%d,,P2P\n", i)
	}

	res, err := ParseString(b.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.SkippedCount != 25 || len(res.Errors) != MaxIssueSamples {
		t.Errorf("SkippedCount = %d, len(Errors) = %d, want 25 and %d", res.SkippedCount, len(res.Errors), MaxIssueSamples)
	}
	if res.Success {
		t.Error("Success should be false when no rows survive")
	}
}

func TestParse_HeaderErrors(t *testing.T) {
	if _, err := ParseString(""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input error = %v, want ErrEmptyInput", err)
	}
	if _, err := ParseString("Amount,Location\n1,Delhi\n"); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing columns error = %v, want ErrMissingColumns", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		hour int
	}{
		{"2024-03-01T22:10:00+05:30", 22},
		{"2024-03-01T22:10:00.123Z", 22},
		{"2024-03-01 07:00:00", 7},
		{"2024-03-01", 0},
		{"03/01/2024 13:45", 13},
	}
	for _, tt := range tests {
		ts, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tt.in, err)
			continue
		}
		if ts.Hour() != tt.hour {
			t.Errorf("ParseTimestamp(%q).Hour() = %d, want %d", tt.in, ts.Hour(), tt.hour)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unrecognised timestamp")
	}
}

func TestLabeled(t *testing.T) {
	records := []Record{{HasLabel: true, FraudLabel: 1}, {}, {HasLabel: true}}
	if got := Labeled(records); len(got) != 2 {
		t.Errorf("Labeled returned %d records, want 2", len(got))
	}
}

func TestSampleParses(t *testing.T) {
	res, err := Parse(bytes.NewReader(Sample()))
	if err != nil {
		t.Fatalf("sample failed to parse: %v", err)
	}
	if res.RowCount < 100 || res.LabeledCount != res.RowCount || res.SkippedCount != 0 {
		t.Errorf("unexpected sample summary: %+v", res)
	}
}

func TestFetchSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/upi_fraud_dataset.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("Amount,Timestamp,TransactionType\n1,2024-01-01,P2P\n"))
	}))
	defer srv.Close()

	body, err := FetchSample(context.Background(), srv.Client(), srv.URL+"/static/upi_fraud_dataset.csv")
	if err != nil {
		t.Fatalf("FetchSample failed: %v", err)
	}
	if !strings.HasPrefix(string(body), "Amount,") {
		t.Errorf("unexpected body %q", body)
	}

	if _, err := FetchSample(context.Background(), srv.Client(), srv.URL+"/missing.csv"); err == nil {
		t.Error("expected error for 404")
	}
}
