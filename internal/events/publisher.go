// Package events relays conversation mutations onto a NATS JetStream
// stream for external consumers. The relay is optional: when no NATS URL
// is configured the service runs without it.
package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

const (
	// StreamName is the name of the conversation events stream.
	StreamName = "CONVERSATIONS"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "conv"
)

// Config holds NATS connection configuration.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// MessageEvent is published on every persisted message append.
type MessageEvent struct {
	ThreadID  string       `json:"threadId"`
	Sender    model.Sender `json:"sender"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
}

// DeleteEvent is published when a conversation is soft-deleted.
type DeleteEvent struct {
	ThreadID  string    `json:"threadId"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher relays conversation events to JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes a NATS connection and ensures the events stream.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, logger: log}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Conversation message and lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageAppended publishes a message event. Failures are logged, never
// surfaced: the relay is observational, not part of the append protocol.
func (p *Publisher) MessageAppended(ctx context.Context, threadID string, msg model.Message) {
	if p == nil {
		return
	}
	subject := fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, threadID, msg.Sender)
	p.publish(ctx, subject, MessageEvent{
		ThreadID:  threadID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}

// ConversationDeleted publishes a soft-delete event.
func (p *Publisher) ConversationDeleted(ctx context.Context, threadID string) {
	if p == nil {
		return
	}
	subject := fmt.Sprintf("%s.%s.deleted", SubjectPrefix, threadID)
	p.publish(ctx, subject, DeleteEvent{ThreadID: threadID, Timestamp: time.Now()})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// IsConnected reports whether the NATS connection is up.
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
