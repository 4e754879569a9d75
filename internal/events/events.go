package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	sse "github.com/r3labs/sse/v2"
	"github.com/wheelibin/yeetlight/internal/constants"
	"github.com/wheelibin/yeetlight/internal/models"
)

// Publisher streams bulb snapshots to connected clients
type Publisher struct {
	logger *log.Logger
	server *sse.Server
}

func NewPublisher(logger *log.Logger) *Publisher {
	server := sse.New()
	// clients fetch /bulbs on connect, old events are of no use to them
	server.AutoReplay = false
	server.CreateStream(constants.StreamState)

	return &Publisher{logger: logger, server: server}
}

func (p *Publisher) Publish(snapshot models.BulbSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Error("Error encoding bulb event", "bulb", snapshot.Name, "err", err)
		return
	}
	p.server.Publish(constants.StreamState, &sse.Event{
		Event: []byte(constants.EventBulb),
		Data:  data,
	})
}

func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.server.ServeHTTP(w, r)
}

func (p *Publisher) Close() {
	p.server.Close()
}

// Subscriber receives bulb snapshots from a daemon
type Subscriber struct {
	logger *log.Logger

	client *sse.Client
}

func NewSubscriber(logger *log.Logger, baseURL string) *Subscriber {
	client := sse.NewClient(fmt.Sprintf("%s/events", baseURL))
	client.OnConnect(func(_ *sse.Client) {
		logger.Info("Connected to yeetlightd, listening for events...")
	})
	client.OnDisconnect(func(_ *sse.Client) {
		logger.Info("Disconnected from yeetlightd")
	})

	return &Subscriber{logger: logger, client: client}
}

// Subscribe calls fn for every bulb event until ctx is done
func (s *Subscriber) Subscribe(ctx context.Context, fn func(models.BulbSnapshot)) error {
	return s.client.SubscribeWithContext(ctx, constants.StreamState, func(msg *sse.Event) {
		if string(msg.Event) != constants.EventBulb || len(msg.Data) == 0 {
			return
		}
		var snapshot models.BulbSnapshot
		if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
			s.logger.Warn("Error decoding bulb event", "err", err)
			return
		}
		fn(snapshot)
	})
}
