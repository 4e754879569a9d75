package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/wheelibin/yeetlight/internal/constants"
	"github.com/wheelibin/yeetlight/internal/models"
)

var (
	// the backend could not be reached
	ErrUnreachable = errors.New("unreachable")
	// the backend answered with a non-success status
	ErrRejected = errors.New("rejected")
)

// Gateway talks to the bulb backend over HTTP. A command is applied only when
// the backend answers with a 2xx status; anything else is "not applied".
type Gateway struct {
	logger  *log.Logger
	baseURL string
	client  *http.Client
}

func NewGateway(logger *log.Logger, baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		logger:  logger,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *Gateway) GET(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return g.makeRequest(ctx, http.MethodGet, path, query)
}

func (g *Gateway) POST(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return g.makeRequest(ctx, http.MethodPost, path, query)
}

func (g *Gateway) FetchConfig(ctx context.Context) (models.BulbsConfig, error) {
	body, err := g.GET(ctx, constants.PathConfig, nil)
	if err != nil {
		return models.BulbsConfig{}, fmt.Errorf("error reading bulb config: %w", err)
	}

	cfg := models.BulbsConfig{}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return models.BulbsConfig{}, fmt.Errorf("error parsing bulb config: %w", err)
	}
	return cfg, nil
}

func (g *Gateway) FetchStatus(ctx context.Context, addr string) (models.Status, error) {
	body, err := g.GET(ctx, constants.PathInfo, url.Values{"bulb": {addr}})
	if err != nil {
		return models.Status{}, fmt.Errorf("error reading status of bulb (%s): %w", addr, err)
	}

	status := models.Status{}
	if err := json.Unmarshal(body, &status); err != nil {
		return models.Status{}, fmt.Errorf("error parsing status of bulb (%s): %w", addr, err)
	}
	return status, nil
}

func (g *Gateway) SetPower(ctx context.Context, addr string, on bool) error {
	path := constants.PathOff
	if on {
		path = constants.PathOn
	}
	_, err := g.POST(ctx, path, url.Values{"bulb": {addr}})
	return err
}

func (g *Gateway) SetBrightness(ctx context.Context, addr string, pct int) error {
	_, err := g.POST(ctx, constants.PathBrightness, url.Values{
		"bulb":       {addr},
		"brightness": {strconv.Itoa(pct)},
	})
	return err
}

func (g *Gateway) SetTemperature(ctx context.Context, addr string, temperature int) error {
	_, err := g.POST(ctx, constants.PathTemperature, url.Values{
		"bulb":        {addr},
		"temperature": {strconv.Itoa(temperature)},
	})
	return err
}

func (g *Gateway) SetColor(ctx context.Context, addr string, color models.Color) error {
	_, err := g.POST(ctx, constants.PathColor, url.Values{
		"bulb": {addr},
		"rgb":  {color.Hex()},
	})
	return err
}

func (g *Gateway) makeRequest(ctx context.Context, verb string, path string, query url.Values) ([]byte, error) {

	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, verb, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(constants.HeaderRequestID, uuid.NewString())

	g.logger.Debug("backend request", "method", verb, "url", u)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", verb, path, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", verb, path, ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("backend call failed", "url", u, "status", resp.Status)
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s: %s", verb, path, ErrRejected, resp.Status, msg)
		}
		return nil, fmt.Errorf("%s %s: %w: %s", verb, path, ErrRejected, resp.Status)
	}

	return body, nil
}
