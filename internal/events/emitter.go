package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/clarkflip/pf-verify/internal/logger"
	"github.com/clarkflip/pf-verify/internal/verify"
)

// ReportEvent is the published form of a verification report. It carries
// the server hash, never the seed.
type ReportEvent struct {
	Type       string            `json:"type"`
	RunID      string            `json:"run_id,omitempty"`
	RoundID    string            `json:"round_id,omitempty"`
	Game       string            `json:"game"`
	ServerHash string            `json:"server_hash,omitempty"`
	Match      bool              `json:"match"`
	Mismatches []verify.Mismatch `json:"mismatches,omitempty"`
	Error      string            `json:"error,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// NewReportEvent converts a report for publishing.
func NewReportEvent(runID string, rep verify.Report) ReportEvent {
	typ := "round.verified"
	if rep.Error != "" {
		typ = "round.failed"
	} else if !rep.Match {
		typ = "round.mismatch"
	}
	return ReportEvent{
		Type:       typ,
		RunID:      runID,
		RoundID:    rep.RoundID,
		Game:       rep.Game,
		ServerHash: rep.ServerHash,
		Match:      rep.Match,
		Mismatches: rep.Mismatches,
		Error:      rep.Error,
		Timestamp:  time.Now().UTC().Unix(),
	}
}

// Publisher emits verification reports to interested consumers.
type Publisher interface {
	PublishReport(ctx context.Context, runID string, rep verify.Report) error
	Close()
}

// conn is the slice of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

type NATSPublisher struct {
	conn          conn
	subjectPrefix string
}

// NewNATSPublisher connects to natsURL and publishes to
// <subjectPrefix>.<game>.
func NewNATSPublisher(natsURL, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("pfverify"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newPublisher(nc, subjectPrefix), nil
}

func newPublisher(c conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{conn: c, subjectPrefix: subjectPrefix}
}

func (p *NATSPublisher) PublishReport(ctx context.Context, runID string, rep verify.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewReportEvent(runID, rep))
	if err != nil {
		return err
	}
	game := rep.Game
	if game == "" {
		game = "unknown"
	}
	return p.conn.Publish(p.subjectPrefix+"."+game, data)
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher drops every report. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishReport(context.Context, string, verify.Report) error { return nil }
func (NopPublisher) Close()                                                     {}

// PublishBatch publishes every report, stopping at the first error.
func PublishBatch(ctx context.Context, p Publisher, runID string, reports []verify.Report) error {
	for _, rep := range reports {
		if err := p.PublishReport(ctx, runID, rep); err != nil {
			return fmt.Errorf("publish report %s: %w", rep.RoundID, err)
		}
	}
	return nil
}
