package preference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/ranking"
)

const (
	// RemoteProviderName identifies the inference service in health reports.
	RemoteProviderName = "preference-model"

	// DefaultRemoteTimeout bounds one prediction request.
	DefaultRemoteTimeout = 2 * time.Second

	predictPath = "/predict"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteConfig holds configuration for the remote model.
type RemoteConfig struct {
	// BaseURL is the inference service URL (required).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout bounds each request when HTTPClient is nil (default: 2s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// RemoteModel asks an HTTP inference service for predictions.
type RemoteModel struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewRemoteModel creates a remote model.
func NewRemoteModel(cfg RemoteConfig) *RemoteModel {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultRemoteTimeout
		}
		clientCfg := resilience.DefaultClientConfig(RemoteProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Retries = 1
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &RemoteModel{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

type predictResponse struct {
	Preference    ranking.Objective             `json:"preference"`
	Probabilities map[ranking.Objective]float64 `json:"probabilities"`
}

// Predict implements ranking.PreferenceModel. Every failure is reported as
// ranking.ErrModelUnavailable.
func (m *RemoteModel) Predict(ctx context.Context, f ranking.Features) (*ranking.Prediction, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ranking.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ranking.ErrModelUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		m.logger.Debug().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(respBody), 200)).
			Msg("preference model request failed")
		return nil, fmt.Errorf("%w: status %d", ranking.ErrModelUnavailable, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ranking.ErrModelUnavailable, err)
	}
	if !pr.Preference.Valid() {
		return nil, fmt.Errorf("%w: unknown objective %q", ranking.ErrModelUnavailable, pr.Preference)
	}

	return &ranking.Prediction{Objective: pr.Preference, Distribution: pr.Probabilities}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
