// ABOUTME: Sink publishing pipeline events as JSON on a NATS subject per stage
// ABOUTME: Publishing is fire-and-forget; connection problems are logged, never returned
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Publisher is the subset of a NATS connection the sink needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events on <prefix>.<stage>
type NATSSink struct {
	pub    Publisher
	prefix string
	logger *log.Logger
	conn   *nats.Conn
}

// DialNATS connects to url and returns a sink publishing under prefix
func DialNATS(url, prefix string, logger *log.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("actes-verif"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s := NewNATSSink(nc, prefix, logger)
	s.conn = nc
	return s, nil
}

// NewNATSSink wraps an existing publisher
func NewNATSSink(pub Publisher, prefix string, logger *log.Logger) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the subject events of stage are published on
func (s *NATSSink) Subject(stage string) string {
	return s.prefix + "." + stage
}

// Emit publishes e
func (s *NATSSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("marshal event", "stage", e.Stage, "err", err)
		return
	}
	if err := s.pub.Publish(s.Subject(e.Stage), data); err != nil {
		s.logger.Warn("publish event", "subject", s.Subject(e.Stage), "err", err)
	}
}

// Close drains the connection opened by DialNATS
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
