package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials a NATS server.
func ConnectNATS(url string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("wfgen"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// NATSSink publishes events as JSON on "<subject>.<requestId>".
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNATS creates a NATS sink. Wrap it with Async; Publish may block on a
// slow connection.
func NewNATS(pub Publisher, subject string, logger *slog.Logger) *NATSSink {
	if subject == "" {
		subject = "wfgen.progress"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(e Event) string {
	if e.RequestID == "" {
		return s.subject
	}
	return s.subject + "." + e.RequestID
}

// Report publishes e. Failures are logged.
func (s *NATSSink) Report(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal progress event", "error", err)
		return
	}
	if err := s.pub.Publish(s.Subject(e), data); err != nil {
		s.logger.Warn("publish progress event to NATS", "subject", s.Subject(e), "error", err)
	}
}
