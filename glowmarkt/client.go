package glowmarkt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angas/glowbridge/config"
)

const (
	authTimeout    = 10 * time.Second
	requestTimeout = 30 * time.Second
	// A token is treated as expired one minute before its actual expiry so
	// an in-flight cycle never sends a token about to lapse.
	tokenExpiryMargin = time.Minute

	timeFormat = "2006-01-02T15:04:05"
)

// Client talks to the Glowmarkt API. It owns the bearer token and refreshes
// it proactively before expiry, or reactively when a call comes back with
// 401/403 (one retry, then the cycle fails with an AuthenticationError).
type Client struct {
	logger        *slog.Logger
	httpClient    *http.Client
	baseUrl       string
	applicationId string
	username      string
	password      string
	tokenLifetime time.Duration
	now           func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(cnfg config.AppConfigGlow, logger *slog.Logger) *Client {
	return &Client{
		logger:        logger,
		httpClient:    &http.Client{},
		baseUrl:       cnfg.GetApiUrl(),
		applicationId: cnfg.GetApplicationId(),
		username:      cnfg.Username,
		password:      cnfg.Password,
		tokenLifetime: cnfg.GetTokenLifetime(),
		now:           time.Now,
	}
}

// Authenticate posts the credentials and stores the returned token together
// with its computed expiry.
func (c *Client) Authenticate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return &APIError{Message: "encoding auth request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/auth", bytes.NewReader(body))
	if err != nil {
		return &APIError{Message: "creating auth request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("applicationId", c.applicationId)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CommunicationError{Message: "communication error during authentication", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthenticationError{Message: "invalid credentials"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Message: fmt.Sprintf("unexpected status code %d during authentication", resp.StatusCode)}
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return &APIError{Message: "decoding auth response", Err: err}
	}
	if !ar.Valid {
		return &AuthenticationError{Message: "authentication failed: invalid response"}
	}
	if ar.Token == "" {
		return &AuthenticationError{Message: "authentication failed: no token received"}
	}

	expiry := c.now().Add(c.tokenLifetime)
	c.mu.Lock()
	c.token = ar.Token
	c.tokenExpiry = expiry
	c.mu.Unlock()

	c.logger.Debug("authenticated against glowmarkt api",
		slog.Time("tokenExpiry", expiry))

	return nil
}

func (c *Client) ensureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	expiry := c.tokenExpiry
	c.mu.Unlock()

	if token == "" || !c.now().Before(expiry.Add(-tokenExpiryMargin)) {
		return c.Authenticate(ctx)
	}
	return nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) authHeaders() http.Header {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("applicationId", c.applicationId)
	h.Set("token", token)
	return h
}

func (c *Client) send(ctx context.Context, method, endpoint string, params url.Values, body []byte) (int, []byte, error) {
	u := c.baseUrl + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, &APIError{Message: fmt.Sprintf("creating request for %s", endpoint), Err: err}
	}
	req.Header = c.authHeaders()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, &CommunicationError{Message: fmt.Sprintf("timeout fetching data from %s", endpoint), Err: err}
		}
		return 0, nil, &CommunicationError{Message: fmt.Sprintf("communication error with %s", endpoint), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &CommunicationError{Message: fmt.Sprintf("reading response from %s", endpoint), Err: err}
	}

	return resp.StatusCode, data, nil
}

// request issues an authenticated call. A 401/403 clears the token,
// re-authenticates once and retries the call once; a second 401/403 is an
// AuthenticationError.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, body any, out any) error {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("encoding request body for %s", endpoint), Err: err}
		}
	}

	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	status, data, err := c.send(rctx, method, endpoint, params, bodyBytes)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.logger.Debug("token rejected, re-authenticating", slog.String("endpoint", endpoint))
		c.clearToken()
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		status, data, err = c.send(rctx, method, endpoint, params, bodyBytes)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return &AuthenticationError{Message: "authentication failed after token refresh"}
		}
	}

	if status < 200 || status > 299 {
		return &APIError{Message: fmt.Sprintf("unexpected status code %d from %s", status, endpoint)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Message: fmt.Sprintf("unexpected error with %s", endpoint), Err: err}
		}
	}

	return nil
}

// GetVirtualEntities lists all smart meters on the account.
func (c *Client) GetVirtualEntities(ctx context.Context) ([]VirtualEntity, error) {
	var out []VirtualEntity
	if err := c.request(ctx, http.MethodGet, "virtualentity", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResources lists the measurable streams of a virtual entity.
func (c *Client) GetResources(ctx context.Context, veId string) ([]Resource, error) {
	var out resourcesResponse
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("virtualentity/%s/resources", veId), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// GetReadings fetches time-bucketed readings for a resource.
func (c *Client) GetReadings(ctx context.Context, resourceId string, from, to time.Time, period, function string) (ReadingSeries, error) {
	params := url.Values{}
	params.Set("from", from.Format(timeFormat))
	params.Set("to", to.Format(timeFormat))
	params.Set("period", period)
	params.Set("function", function)
	params.Set("offset", "0")

	var out ReadingSeries
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("resource/%s/readings", resourceId), params, nil, &out); err != nil {
		return ReadingSeries{}, err
	}
	return out, nil
}

// GetTariff fetches the tariff history for a resource.
func (c *Client) GetTariff(ctx context.Context, resourceId string) (Tariff, error) {
	var out Tariff
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("resource/%s/tariff", resourceId), nil, nil, &out); err != nil {
		return Tariff{}, err
	}
	return out, nil
}

// GetCurrent fetches the most recent instantaneous reading for a resource.
func (c *Client) GetCurrent(ctx context.Context, resourceId string) (ReadingSeries, error) {
	var out ReadingSeries
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("resource/%s/current", resourceId), nil, nil, &out); err != nil {
		return ReadingSeries{}, err
	}
	return out, nil
}

// Catchup asks the DCC to pull the latest data for a resource.
func (c *Client) Catchup(ctx context.Context, resourceId string) error {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("resource/%s/catchup", resourceId), nil, nil, nil)
}

type readingWindow struct {
	name   string
	start  time.Time
	period string
}

// windows returns the start of today, this week (Monday) and this month for
// the given instant, all in UTC.
func windows(now time.Time) (time.Time, time.Time, time.Time) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := todayStart.AddDate(0, 0, -((int(todayStart.Weekday()) + 6) % 7))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return todayStart, weekStart, monthStart
}

// GetData runs a full fetch cycle: virtual entities, their resources, then
// per resource a short recent window (current value), the three aggregate
// windows and the tariff. Per-resource fetches are best-effort: a failed
// reading or tariff is logged and skipped so one bad stream never takes down
// the whole cycle. Authentication failures do abort the cycle, they would
// fail every remaining call anyway.
func (c *Client) GetData(ctx context.Context) (*RawData, error) {
	ves, err := c.GetVirtualEntities(ctx)
	if err != nil {
		return nil, err
	}

	result := &RawData{
		VirtualEntities: ves,
		Meters:          make(map[string]*MeterData, len(ves)),
	}

	now := c.now().UTC()
	todayStart, weekStart, monthStart := windows(now)
	readingWindows := []readingWindow{
		{name: "today", start: todayStart, period: PeriodDay},
		{name: "week", start: weekStart, period: PeriodWeek},
		{name: "month", start: monthStart, period: PeriodMonth},
	}

	for _, ve := range ves {
		if ve.VeId == "" {
			continue
		}

		resources, err := c.GetResources(ctx, ve.VeId)
		if err != nil {
			return nil, err
		}

		md := &MeterData{
			VirtualEntity: ve,
			Resources:     resources,
			Readings:      make(map[string]ReadingSeries),
			Current:       make(map[string]ReadingSeries),
			Tariffs:       make(map[string]Tariff),
		}

		for _, res := range resources {
			if res.ResourceId == "" {
				continue
			}
			isCost := strings.Contains(res.Classifier, "cost")

			if !isCost {
				current, err := c.GetReadings(ctx, res.ResourceId, now.Add(-5*time.Minute), now, PeriodMinute, FunctionSum)
				if err != nil {
					if IsAuthenticationError(err) {
						return nil, err
					}
					c.logger.Debug("current reading unavailable",
						slog.String("resource", res.ResourceId),
						slog.String("classifier", res.Classifier),
						slog.Any("error", err))
				} else {
					md.Current[res.Classifier] = current
				}
			}

			for _, w := range readingWindows {
				readings, err := c.GetReadings(ctx, res.ResourceId, w.start, now, w.period, FunctionSum)
				if err != nil {
					if IsAuthenticationError(err) {
						return nil, err
					}
					c.logger.Debug("readings unavailable",
						slog.String("resource", res.ResourceId),
						slog.String("window", w.name),
						slog.Any("error", err))
					continue
				}
				md.Readings[res.Classifier+"_"+w.name] = readings
			}

			if !isCost {
				tariff, err := c.GetTariff(ctx, res.ResourceId)
				if err != nil {
					if IsAuthenticationError(err) {
						return nil, err
					}
					c.logger.Debug("tariff unavailable",
						slog.String("resource", res.ResourceId),
						slog.Any("error", err))
				} else {
					md.Tariffs[res.Classifier] = tariff
				}
			}
		}

		result.Meters[ve.VeId] = md
	}

	return result, nil
}
