// Package gateway implements the messaging-network connection port against a
// protocol gateway process. The gateway owns the proprietary wire protocol
// and mirrors per-tenant lifecycle and message events into a Kafka topic;
// commands flow back on a second topic, and media bytes are fetched over
// HTTP. Each adapter instance runs one consumer and is single-use, matching
// the connection port's contract.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"relaydesk/internal/platform/kafka/producer"
	"relaydesk/internal/sentinel"
	"relaydesk/internal/session"
	"relaydesk/pkg/domain"
)

// Config locates the gateway's topics and media endpoint.
type Config struct {
	Brokers       string
	EventsTopic   string
	CommandsTopic string
	MediaBaseURL  string
}

// Factory builds one adapter per connection attempt. It also serves as the
// credential store: the gateway holds the network credentials, so purging is
// a command like any other.
type Factory struct {
	cfg      Config
	producer *producer.Producer
	http     *http.Client
	logger   *slog.Logger
}

func NewFactory(cfg Config, prod *producer.Producer, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:      cfg,
		producer: prod,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (f *Factory) NewAdapter(tenantID domain.TenantID) session.ConnectionAdapter {
	return &Adapter{
		tenantID: tenantID,
		factory:  f,
		events:   make(chan session.Event, 64),
	}
}

// Purge implements session.CredentialStore.
func (f *Factory) Purge(ctx context.Context, tenantID domain.TenantID) error {
	return f.send(ctx, tenantID, command{Command: "purge_credentials"})
}

// command is the wire shape produced to the commands topic, keyed by tenant.
type command struct {
	Command   string `json:"command"`
	Bootstrap bool   `json:"bootstrapCredentials,omitempty"`
	LogOut    bool   `json:"logOut,omitempty"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

func (f *Factory) send(ctx context.Context, tenantID domain.TenantID, cmd command) error {
	value, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode gateway command: %w", err)
	}
	return f.producer.Produce(ctx, &producer.Message{
		Topic: f.cfg.CommandsTopic,
		Key:   []byte(tenantID.String()),
		Value: value,
	})
}

// wireEvent is the wire shape consumed from the events topic.
type wireEvent struct {
	Kind    string `json:"kind"`
	QRCode  string `json:"qrCode,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message *struct {
		From        string `json:"from"`
		DisplayName string `json:"displayName,omitempty"`
		Text        string `json:"text,omitempty"`
		Media       *struct {
			ID       string `json:"id"`
			MimeType string `json:"mimeType,omitempty"`
			Caption  string `json:"caption,omitempty"`
		} `json:"media,omitempty"`
	} `json:"message,omitempty"`
}

// Adapter is one tenant connection through the gateway.
type Adapter struct {
	tenantID domain.TenantID
	factory  *Factory
	events   chan session.Event

	mu       sync.Mutex
	client   *kgo.Client
	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once
}

func (a *Adapter) Initialize(ctx context.Context, bootstrapCredentials bool) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("gateway adapter is single-use; build a new one to reconnect")
	}
	a.started = true

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(a.factory.cfg.Brokers, ",")...),
		kgo.ConsumeTopics(a.factory.cfg.EventsTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		a.mu.Unlock()
		close(a.events)
		return fmt.Errorf("create gateway consumer: %w", err)
	}
	a.client = client

	pollCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	go a.poll(pollCtx)

	if err := a.factory.send(ctx, a.tenantID, command{Command: "initialize", Bootstrap: bootstrapCredentials}); err != nil {
		a.stop()
		return err
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context, logOut bool) error {
	err := a.factory.send(ctx, a.tenantID, command{Command: "disconnect", LogOut: logOut})
	a.stop()
	return err
}

func (a *Adapter) SendText(ctx context.Context, conversationID domain.ConversationID, text string) error {
	return a.factory.send(ctx, a.tenantID, command{
		Command: "send_text",
		To:      conversationID.String(),
		Text:    text,
	})
}

func (a *Adapter) SendMedia(ctx context.Context, conversationID domain.ConversationID, data []byte, mimeType, caption string) error {
	return a.factory.send(ctx, a.tenantID, command{
		Command:  "send_media",
		To:       conversationID.String(),
		MimeType: mimeType,
		Caption:  caption,
		Data:     data,
	})
}

func (a *Adapter) DownloadMedia(ctx context.Context, ref session.MediaRef) ([]byte, error) {
	url := strings.TrimRight(a.factory.cfg.MediaBaseURL, "/") + "/media/" + ref.ID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := a.factory.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media %s: %w", ref.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch media %s: %w", ref.ID, sentinel.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media %s: gateway returned %d", ref.ID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *Adapter) Events() <-chan session.Event { return a.events }

// poll consumes gateway events until the adapter is stopped, then closes the
// event channel so the owning pump exits.
func (a *Adapter) poll(ctx context.Context) {
	defer close(a.events)

	for {
		fetches := a.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			a.factory.logger.Error("gateway event fetch failed",
				"tenant_id", a.tenantID.String(),
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			if string(rec.Key) != a.tenantID.String() {
				return
			}
			ev, ok := a.decode(rec.Value)
			if !ok {
				return
			}
			select {
			case a.events <- ev:
			case <-ctx.Done():
			}
		})
	}
}

func (a *Adapter) decode(raw []byte) (session.Event, bool) {
	var we wireEvent
	if err := json.Unmarshal(raw, &we); err != nil {
		a.factory.logger.Error("malformed gateway event",
			"tenant_id", a.tenantID.String(),
			"error", err,
		)
		return session.Event{}, false
	}

	ev := session.Event{
		Kind:   session.EventKind(we.Kind),
		QRCode: we.QRCode,
		Reason: we.Reason,
	}
	switch ev.Kind {
	case session.EventQR, session.EventAuthenticated, session.EventReady,
		session.EventAuthFailure, session.EventDisconnected:
		return ev, true
	case session.EventMessage:
		if we.Message == nil {
			return session.Event{}, false
		}
		msg := &session.InboundMessage{
			From:        we.Message.From,
			DisplayName: we.Message.DisplayName,
			Text:        we.Message.Text,
		}
		if we.Message.Media != nil {
			msg.MediaRef = &session.MediaRef{
				ID:       we.Message.Media.ID,
				MimeType: we.Message.Media.MimeType,
				Caption:  we.Message.Media.Caption,
			}
		}
		ev.Message = msg
		return ev, true
	default:
		a.factory.logger.Warn("unknown gateway event kind",
			"tenant_id", a.tenantID.String(),
			"kind", we.Kind,
		)
		return session.Event{}, false
	}
}

func (a *Adapter) stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		cancel := a.cancel
		client := a.client
		started := a.started
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if client != nil {
			client.Close()
		}
		if !started {
			// Initialize never ran; nothing owns the channel yet.
			close(a.events)
		}
	})
}
