package config

// Application constants
const (
	AppName     = "APS Brasília Dashboard"
	AppVersion  = "1.0.0"
	ServiceName = "aps-dashboard"

	// Dataset
	DefaultDatasetFile = "atendimentos_aps_brasilia.csv"
	DefaultSampleRows  = 5

	// Forecast horizon bounds, in months
	DefaultForecastHorizon = 12
	MinForecastHorizon     = 1
	MaxForecastHorizon     = 24

	// Rate limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Paths (relative to the base directory)
	DefaultDataDir   = "data"
	DefaultLogsDir   = "logs"
	DefaultExportDir = "exports"
)
