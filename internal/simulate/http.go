package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/pkg/logger"
)

// HTTPClient wraps http.Client with a per-request timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, rawURL string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// predictionPayload mirrors the POST /predictions request body.
type predictionPayload struct {
	Category   string           `json:"category"`
	Season     string           `json:"season"`
	RaceID     string           `json:"race_id"`
	Prediction model.Prediction `json:"prediction"`
}

// resultPayload mirrors the POST /results request body.
type resultPayload struct {
	Category string           `json:"category"`
	Season   string           `json:"season"`
	RaceID   string           `json:"race_id"`
	Result   model.RaceResult `json:"result"`
}

// submitPredictions posts every prediction for every race using a worker pool.
func submitPredictions(ctx context.Context, config *Config, races []Race, stats *Stats) error {
	total := 0
	for i := range races {
		total += len(races[i].Predictions)
	}
	logger.Get().Info(ctx, "submitting predictions",
		logger.Int("count", total),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	endpoint := config.BaseURL + "/predictions"

	var submitted, failed int64

	payloadChan := make(chan predictionPayload, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payload := range payloadChan {
				select {
				case <-ctx.Done():
					return
				default:
					if err := postJSON(ctx, client, endpoint, payload, http.StatusAccepted); err != nil {
						atomic.AddInt64(&failed, 1)
						continue
					}
					atomic.AddInt64(&submitted, 1)
				}
			}
		}()
	}

	go func() {
		defer close(payloadChan)
		for i := range races {
			for _, pred := range races[i].Predictions {
				select {
				case <-ctx.Done():
					return
				case payloadChan <- predictionPayload{
					Category:   config.Category,
					Season:     config.Season,
					RaceID:     races[i].RaceID,
					Prediction: pred,
				}:
				}
			}
		}
	}()

	wg.Wait()

	stats.PredictionsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.PredictionsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "prediction submission completed",
		logger.Int("submitted", stats.PredictionsSubmitted),
		logger.Int("failed", stats.PredictionsFailed))

	if stats.PredictionsFailed > 0 {
		return fmt.Errorf("%d of %d predictions failed to submit", stats.PredictionsFailed, total)
	}
	return nil
}

// submitResults posts each official result sequentially; each POST scores
// the whole race batch, so one in flight at a time keeps output readable.
func submitResults(ctx context.Context, config *Config, races []Race, stats *Stats) error {
	logger.Get().Info(ctx, "submitting race results", logger.Int("count", len(races)))

	client := newHTTPClient(config.Timeout)
	endpoint := config.BaseURL + "/results"

	for i := range races {
		payload := resultPayload{
			Category: config.Category,
			Season:   config.Season,
			RaceID:   races[i].RaceID,
			Result:   races[i].Result,
		}
		if err := postJSON(ctx, client, endpoint, payload, http.StatusOK); err != nil {
			stats.ResultsFailed++
			logger.Get().Error(ctx, "result submission failed",
				logger.String("raceID", races[i].RaceID), logger.Error(err))
			continue
		}
		stats.ResultsSubmitted++
		if config.Verbose {
			logger.Get().Info(ctx, "race scored", logger.String("raceID", races[i].RaceID))
		}
	}

	if stats.ResultsFailed > 0 {
		return fmt.Errorf("%d of %d results failed to submit", stats.ResultsFailed, len(races))
	}
	return nil
}

// postJSON posts a payload and checks the response status.
func postJSON(ctx context.Context, client *HTTPClient, endpoint string, payload interface{}, wantStatus int) error {
	resp, err := client.Post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// fetchLeaderboard retrieves the top N standings for the simulated season.
func fetchLeaderboard(ctx context.Context, config *Config) ([]Standing, error) {
	client := newHTTPClient(config.Timeout)
	endpoint := config.BaseURL + "/leaderboard?season=" + url.QueryEscape(config.Season) +
		"&limit=" + fmt.Sprintf("%d", config.TopN)

	resp, err := client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("leaderboard request failed with status %d", resp.StatusCode)
	}

	var standings []Standing
	if err := json.Unmarshal(body, &standings); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}
	return standings, nil
}
