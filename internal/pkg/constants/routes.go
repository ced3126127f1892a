package constants

// Static route constants
const (
	PublicRoute     = "/"
	APIRoute        = "/api"
	MetricsPath     = "/metrics"
	TakeRatesPath   = "/take-rates"
	HealthRoute     = "/healthz"
	PrometheusRoute = "/internal/prometheus"
	MonitorRoute    = "/internal/monitor"
	// Swagger UI is served at DocsBasePath + DocsVersion
	DocsBasePath = "/docs/api/"
	DocsVersion  = "v1"
)

// Version is the build version reported by the ping endpoint. Overridden at
// build time with -ldflags "-X .../constants.Version=...".
var Version = "dev"
