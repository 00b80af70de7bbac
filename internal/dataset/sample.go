package dataset

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
)

//go:embed sample/upi_fraud_dataset.csv
var sampleCSV []byte

// maxSampleBytes bounds a fetched sample dataset.
const maxSampleBytes = 32 << 20

// Sample returns the bundled demo dataset.
func Sample() []byte {
	out := make([]byte, len(sampleCSV))
	copy(out, sampleCSV)
	return out
}

// FetchSample downloads a demo dataset. A nil client uses http.DefaultClient.
func FetchSample(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: building sample request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset: fetching sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("dataset: fetching sample: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSampleBytes))
	if err != nil {
		return nil, fmt.Errorf("dataset: reading sample: %w", err)
	}
	return body, nil
}
