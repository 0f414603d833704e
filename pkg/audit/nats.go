package audit

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsSink publishes audit events to a NATS subject per action, e.g.
// audit.certificate.registered. Publish failures are logged and dropped so
// the event stream never blocks certificate operations.
type NatsSink struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *zap.Logger
}

func NewNatsSink(url, subjectPrefix string, logger *zap.Logger) (*NatsSink, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	if subjectPrefix == "" {
		subjectPrefix = "audit"
	}

	return &NatsSink{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger.With(zap.String("sink", "nats")),
	}, nil
}

func (s *NatsSink) Emit(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal audit event", zap.Error(err))
		return
	}

	subject := s.subjectPrefix + "." + event.Action
	if err := s.conn.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish audit event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

func (s *NatsSink) Close() {
	s.conn.Close()
}
