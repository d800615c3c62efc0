package models

// Health is the liveness reply. It never reflects dependency state.
type Health struct {
	Status        HealthStatus `json:"status"`
	Time          Timestamp    `json:"time"`
	Version       string       `json:"version"`
	BuildTime     string       `json:"buildTime,omitempty"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
}

// Readiness is FAIL when any check failed.
type Readiness struct {
	Status HealthStatus `json:"status"`
	Time   Timestamp    `json:"time"`
	Checks []Check      `json:"checks"`
}

type Check struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// ProvidersStatus is DEGRADED while any provider circuit is not closed.
type ProvidersStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
}

type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       string       `json:"message,omitempty"`
}
