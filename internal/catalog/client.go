package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartquote/internal"
	"smartquote/internal/config"
	"smartquote/internal/logging"
)

// Client reads unit price lists from the catalog HTTP API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *zap.Logger
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Exams    []map[string]any `json:"exams"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

type unitsPayload struct {
	Units []string `json:"units"`
}

func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.CatalogRateLimitRPS),
		logger:     logging.OrNop(logger),
	}
}

// GetCatalog implements Provider by scrolling through every exam of the unit.
func (c *Client) GetCatalog(ctx context.Context, unit string) ([]internal.CatalogEntry, error) {
	all := make([]internal.CatalogEntry, 0)
	seen := map[string]struct{}{}
	var scrollID string
	endpoint := "units/" + url.PathEscape(unit) + "/exams"

	for {
		query := map[string]string{}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Exams {
			entry, err := toCatalogEntry(raw, unit)
			if err != nil {
				c.logger.Debug("skipping catalog record", zap.String("unit", unit), zap.Error(err))
				continue
			}
			all = append(all, entry)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Exams) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	c.logger.Info("catalog fetched", zap.String("unit", unit), zap.Int("entries", len(all)))
	return all, nil
}

func (c *Client) ListUnits(ctx context.Context) ([]string, error) {
	body, err := c.fetchJSON(ctx, "units", map[string]string{})
	if err != nil {
		return nil, err
	}
	var payload unitsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload.Units, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogAPIToken) == "" {
		return nil, errors.New("missing CATALOG_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.CatalogBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				c.logger.Warn("catalog api retry",
					zap.String("endpoint", endpoint),
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt),
					zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				lastErr = fmt.Errorf("catalog status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("catalog api unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// toCatalogEntry accepts both the API field names and the price-table
// export names (item_id, item_name, group_name).
func toCatalogEntry(raw map[string]any, unit string) (internal.CatalogEntry, error) {
	name := firstString(raw, "displayName", "name", "item_name")
	if name == "" {
		return internal.CatalogEntry{}, errors.New("empty name")
	}

	id, ok := toInt(firstValue(raw, "id", "item_id"))
	if !ok {
		return internal.CatalogEntry{}, errors.New("missing id")
	}

	price, _ := toFloat(firstValue(raw, "price", "preco"))
	return internal.CatalogEntry{
		ID:          id,
		DisplayName: name,
		Category:    firstString(raw, "category", "group_name"),
		Price:       price,
		Unit:        unit,
	}, nil
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parsePrice(t)
	}
	return 0, false
}

// parsePrice understands "R$ 1.234,56" as well as "1234.56".
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
