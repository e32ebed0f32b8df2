package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditEventType names a pipeline milestone.
type AuditEventType string

const (
	AuditRequestReceived  AuditEventType = "request_received"
	AuditRequestRejected  AuditEventType = "request_rejected"
	AuditRulesetCompiled  AuditEventType = "ruleset_compiled"
	AuditChangesExtracted AuditEventType = "changes_extracted"
	AuditPostCheckFailed  AuditEventType = "post_check_failed"
	AuditDispatchComplete AuditEventType = "dispatch_complete"
	AuditDispatchFailed   AuditEventType = "dispatch_failed"
	AuditResultStored     AuditEventType = "result_stored"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	Type      AuditEventType
	RequestID string
	Target    string // mode id, backend name, ...
	Success   bool
	Duration  time.Duration
	Message   string
	Fields    []zap.Field
}

// Auditor writes audit events to a dedicated logger.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor returns an auditor writing through l under the audit category.
func NewAuditor(l *zap.Logger) *Auditor {
	return &Auditor{logger: For(l, CategoryAudit)}
}

// Log records an event. Failed events are logged at warn level.
func (a *Auditor) Log(e AuditEvent) {
	if a == nil {
		return
	}
	fields := append([]zap.Field{
		zap.String("event", string(e.Type)),
		zap.String("request_id", e.RequestID),
		zap.String("target", e.Target),
		zap.Bool("success", e.Success),
		zap.Duration("duration", e.Duration),
	}, e.Fields...)
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.Success {
		a.logger.Info(msg, fields...)
		return
	}
	a.logger.Warn(msg, fields...)
}
