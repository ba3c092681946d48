package store

import "time"

// Instance is a logically isolated monitoring tenant.
type Instance struct {
	InstanceID           string
	DisplayName          string
	Enabled              bool
	IsPaused             bool
	PausedUntilUtc       *time.Time
	CheckIntervalSeconds int
	ConcurrencyLimit     int
	TimeZoneID           string
	CreatedUtc           time.Time
}

// Target is a single URL under surveillance within an instance.
type Target struct {
	TargetID              string
	InstanceID            string
	URL                   string
	Enabled               bool
	HTTPExpectedStatusMin int
	HTTPExpectedStatusMax int
	LoginRule             *string
}

// Check is an append-only probe outcome record.
type Check struct {
	CheckID           string
	TargetID          string
	TimestampUtc      time.Time
	TcpOk             bool
	HttpOk            bool
	HttpStatusCode    *int
	TcpLatencyMs      int64
	HttpLatencyMs     int64
	FinalURL          string
	UsedIP            *string
	DetectedLoginType *string
	LoginDetected     bool
	Summary           string
}

// TargetState is the mutable 1:1 projection of the latest Check for a Target.
type TargetState struct {
	TargetID string

	IsUp                bool
	LastCheckUtc        time.Time
	StateSinceUtc       time.Time
	LastChangeUtc       time.Time
	ConsecutiveFailures int

	LastSummary           string
	LastFinalURL          string
	LastUsedIP            *string
	LastDetectedLoginType *string
	LoginDetectedLast     bool
	LoginDetectedEver     bool

	DownFirstNotifiedUtc *time.Time
	LastNotifiedUtc      *time.Time
	NextNotifyUtc        *time.Time
	RecoveredDueUtc      *time.Time
	RecoveredNotifiedUtc *time.Time
}

// Degraded reports the display-only projection defined in the glossary:
// reachable but showing a login surface that was not present on the most
// recent probe.
func (s *TargetState) Degraded() bool {
	return s.IsUp && s.LoginDetectedEver && !s.LoginDetectedLast
}

// EventType enumerates the append-only audit log's event kinds.
type EventType string

const (
	EventAlertDown       EventType = "AlertDown"
	EventAlertDownRepeat EventType = "AlertDownRepeat"
	EventAlertRecovered  EventType = "AlertRecovered"
	EventError           EventType = "Error"
)

// Event is an append-only audit row.
type Event struct {
	EventID      string
	InstanceID   string
	TargetID     *string
	TimestampUtc time.Time
	Type         EventType
	Message      string
}

// SecurityMode enumerates SMTP transport security options.
type SecurityMode string

const (
	SecurityNone    SecurityMode = "None"
	SecuritySslTls  SecurityMode = "SslTls"
	SecurityStartTls SecurityMode = "StartTls"
)

// SmtpSettings is the 1:1 per-instance outbound mail configuration.
type SmtpSettings struct {
	InstanceID        string
	Host              string
	Port              int
	SecurityMode      SecurityMode
	Username          *string
	PasswordProtected *string
	FromAddress       string
}

// Recipient is one instance's email alert recipient.
type Recipient struct {
	InstanceID string
	Email      string
	Enabled    bool
}

// WebhookEndpoint is one instance's alert webhook target.
type WebhookEndpoint struct {
	InstanceID string
	URL        string
	Enabled    bool
}
