package config

import (
	"time"

	"coefcalc/pkg/contracts"
)

// Application constants
const (
	AppName    = "coefcalc"
	AppVersion = contracts.Version

	// Ingestion limits
	DefaultMaxFileBytes   int64 = 50 << 20
	DefaultMaxFiles             = 10
	DefaultMaxRowsPerFile       = 1_000_000
	DefaultMaxTotalRows         = 3_000_000
	DefaultPreviewBytes         = 64 << 10
	DefaultPreviewRows          = 50

	// WebSocket
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
	WebSocketWriteWait  = 10 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultReportsDir = "data/reports"

	// Report naming
	ReportFilePrefix = "coefficients_report_"
	ReportDateLayout = "2006-01-02"
)
