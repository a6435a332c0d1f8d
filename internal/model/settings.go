package model

// ScanDepth is the coverage/quality knob a user can configure.
type ScanDepth string

const (
	DepthQuick    ScanDepth = "quick"
	DepthStandard ScanDepth = "standard"
	DepthDeep     ScanDepth = "deep"
)

// ReportFormat selects the export serialization.
type ReportFormat string

const (
	FormatPDF  ReportFormat = "pdf"
	FormatCSV  ReportFormat = "csv"
	FormatJSON ReportFormat = "json"
	FormatHTML ReportFormat = "html"
)

// Settings are per-user tool preferences. WCAGLevel filters which rules are
// active for that user's scans; rules above the level are skipped.
type Settings struct {
	ScanDepth          ScanDepth    `json:"scanDepth"`
	WCAGLevel          WCAGLevel    `json:"wcagLevel"`
	EmailNotifications bool         `json:"emailNotifications"`
	AutoScan           bool         `json:"autoScan"`
	ReportFormat       ReportFormat `json:"reportFormat"`
	IncludeScreenshots bool         `json:"includeScreenshots"`
}

// DefaultSettings mirrors the original tool defaults.
func DefaultSettings() Settings {
	return Settings{
		ScanDepth:          DepthStandard,
		WCAGLevel:          LevelAA,
		EmailNotifications: false,
		AutoScan:           false,
		ReportFormat:       FormatPDF,
		IncludeScreenshots: false,
	}
}
