package core

import (
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditRecord is the structured record emitted after every completed
// operation and every error, per spec §4.4 ("Audit log"). It is not part
// of the state digest. Its content is not deterministic across replicas:
// the dispatcher fills At from the wall clock and ReqID with a random UUID.
type AuditRecord struct {
	At        string                 `json:"at"`
	ReqID     string                 `json:"reqId"`
	Event     string                 `json:"event"`
	Success   bool                   `json:"success"`
	Actor     string                 `json:"actor,omitempty"`
	VaultID   string                 `json:"vaultId,omitempty"`
	Code      string                 `json:"code,omitempty"`
	ErrorID   string                 `json:"errorId,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// AuditSink writes one JSON line per AuditRecord. Routing the resulting
// stream anywhere beyond the local file is outside the core's
// responsibility (spec §4.4) — operators point logrus' output at whatever
// collector they run.
//
// Grounded on core/system_health_logging.go's logrus.JSONFormatter-to-file
// logger construction.
type AuditSink struct {
	log *logrus.Logger
}

// NewAuditSink opens (creating if necessary) a JSON-lines audit log at
// path. An empty path discards all records, useful for tests.
func NewAuditSink(path string) (*AuditSink, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if path == "" {
		log.SetOutput(discardWriter{})
		return &AuditSink{log: log}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return &AuditSink{log: log}, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Record emits one audit line. NewCorrelationID is called once per request
// by the dispatcher, not here, so success/failure lines for the same
// request share a reqId.
func (a *AuditSink) Record(rec AuditRecord) {
	fields := logrus.Fields{
		"at":      rec.At,
		"reqId":   rec.ReqID,
		"event":   rec.Event,
		"success": rec.Success,
	}
	if rec.Actor != "" {
		fields["actor"] = rec.Actor
	}
	if rec.VaultID != "" {
		fields["vaultId"] = rec.VaultID
	}
	if rec.Code != "" {
		fields["code"] = rec.Code
	}
	if rec.ErrorID != "" {
		fields["errorId"] = rec.ErrorID
	}
	for k, v := range rec.Detail {
		fields[k] = v
	}
	a.log.WithFields(fields).Info(rec.Event)
}

// NewCorrelationID returns a fresh request-correlation id for an audit
// record's reqId field.
func NewCorrelationID() string {
	return uuid.NewString()
}
