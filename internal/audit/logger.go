package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"authentico/internal/audit/domain"
	auditrepo "authentico/internal/audit/repository"
)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  logrus.FieldLogger
}

// NewLogger returns an AuditLogger that persists to repo. Failures are reported on log.
func NewLogger(repo auditrepo.Repository, log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{repo: repo, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"action":   action,
			"resource": resource,
			"user_id":  userID,
		}).Warn("audit: failed to log event")
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
