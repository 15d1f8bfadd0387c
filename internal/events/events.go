package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher emits change hints over NATS so other instances (and pollers)
// know to re-fetch. Delivery is best-effort and outside the consistency
// boundary: consumers must never trust a hint payload for a
// correctness-critical decision.
type Publisher struct {
	conn *nats.Conn
}

// Connect returns a disabled publisher when url is empty.
func Connect(url, token string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	opts := []nats.Option{nats.Name("battlefield-api")}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) WalletChanged(userID string) {
	p.publish("wallet."+userID, map[string]string{"user_id": userID})
}

func (p *Publisher) MatchChanged(matchID, status string) {
	p.publish("match."+matchID, map[string]string{"match_id": matchID, "status": status})
}

func (p *Publisher) publish(subject string, payload any) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.WithField("subject", subject).Warnf("event publish failed: %v", err)
	}
}

func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
