package domain

import "time"

// AuditEventType classifies audit trail entries.
type AuditEventType string

const (
	EventVerificationAttempt AuditEventType = "verification_attempt"
	EventAPICall             AuditEventType = "api_call"
	EventSecurityEvent       AuditEventType = "security_event"
	EventEncryptionOp        AuditEventType = "encryption_operation"
	EventBulkOperation       AuditEventType = "bulk_operation"
)

// AuditResult is the outcome recorded on an audit event.
type AuditResult string

const (
	ResultPending AuditResult = "pending"
	ResultSuccess AuditResult = "success"
	ResultFailure AuditResult = "failure"
	ResultError   AuditResult = "error"
)

// ActorAnonymous marks self-service flows where no authenticated user exists.
const ActorAnonymous = "anonymous"

// AuditEvent is an immutable audit trail entry. Identifiers arrive already
// masked; the trail rejects nothing and mutates nothing after append.
type AuditEvent struct {
	ID        string
	Type      AuditEventType
	Kind      IdentityKind
	MaskedID  string
	Result    AuditResult
	ErrorCode string
	ErrorMsg  string
	Actor     string
	IP        string
	Provider  string
	Cost      float64
	Metadata  map[string]any
	Timestamp time.Time
}
