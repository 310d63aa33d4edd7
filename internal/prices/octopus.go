package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/awaistahir/cheapest-period/internal/engine"
)

const (
	octopusAPIBase = "https://api.octopus.energy/v1"
	// Current Agile product code - update as needed
	defaultAgileProduct = "AGILE-24-10-01"
)

// OctopusClient fetches electricity prices from Octopus Energy Agile tariff
type OctopusClient struct {
	httpClient *http.Client
	baseURL    string
	product    string
	region     string
}

// ClientOption customises an OctopusClient
type ClientOption func(*OctopusClient)

// WithProduct overrides the Agile product code
func WithProduct(product string) ClientOption {
	return func(c *OctopusClient) {
		if product != "" {
			c.product = product
		}
	}
}

// WithBaseURL points the client at another API root
func WithBaseURL(base string) ClientOption {
	return func(c *OctopusClient) {
		c.baseURL = base
	}
}

// NewOctopusClient creates a new client for the Octopus Agile API
func NewOctopusClient(region string, opts ...ClientOption) *OctopusClient {
	c := &OctopusClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    octopusAPIBase,
		product:    defaultAgileProduct,
		region:     region,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TariffCode returns the electricity tariff code for the client's region
func (c *OctopusClient) TariffCode() string {
	return fmt.Sprintf("E-1R-%s-%s", c.product, c.region)
}

// octopusResponse represents the API response structure
type octopusResponse struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []resultItem `json:"results"`
}

type resultItem struct {
	ValueExcVAT   float64   `json:"value_exc_vat"`
	ValueIncVAT   float64   `json:"value_inc_vat"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	PaymentMethod *string   `json:"payment_method"`
}

// HalfHourly fetches half-hourly rates (pence/kWh inc VAT) for a UTC day
func (c *OctopusClient) HalfHourly(ctx context.Context, day time.Time) ([]engine.RateInterval, error) {
	endpoint := fmt.Sprintf("%s/products/%s/electricity-tariffs/%s/standard-unit-rates/",
		c.baseURL, c.product, c.TariffCode())

	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	params := url.Values{}
	params.Add("period_from", startOfDay.Format(time.RFC3339))
	params.Add("period_to", endOfDay.Format(time.RFC3339))

	fullURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var octResp octopusResponse
	if err := json.NewDecoder(resp.Body).Decode(&octResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	rates := make([]engine.RateInterval, 0, len(octResp.Results))
	for _, r := range octResp.Results {
		rates = append(rates, engine.RateInterval{
			Start:       r.ValidFrom,
			End:         r.ValidTo,
			ValueIncVAT: r.ValueIncVAT,
		})
	}

	// API returns in reverse chronological order
	sort.Slice(rates, func(i, j int) bool {
		return rates[i].Start.Before(rates[j].Start)
	})

	return rates, nil
}

// FetchTodayAndTomorrow fetches prices for today and tomorrow (if available)
func (c *OctopusClient) FetchTodayAndTomorrow(ctx context.Context, now time.Time) (today, tomorrow []engine.RateInterval, err error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	today, err = c.HalfHourly(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching today's prices: %w", err)
	}

	// Tomorrow is published in the afternoon; a failure here is not fatal
	tomorrow, err = c.HalfHourly(ctx, day.Add(24*time.Hour))
	if err != nil {
		return today, nil, nil
	}

	return today, tomorrow, nil
}
