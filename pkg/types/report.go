package types

// Report severities.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
	SeverityDebug   = "DEBUG"
)

// ReportItem is one structured diagnostic or progress record produced while a
// command runs. The scheduler stores it without interpreting it.
type ReportItem struct {
	Severity string         `json:"severity"`
	Code     string         `json:"code"`
	Message  string         `json:"message,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// NewReportItem builds a report with an optional payload.
func NewReportItem(severity, code, message string, payload map[string]any) ReportItem {
	return ReportItem{Severity: severity, Code: code, Message: message, Payload: payload}
}
