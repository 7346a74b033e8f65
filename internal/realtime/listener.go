package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"gorm.io/gorm"
)

// NotifyChannel is the Postgres channel the change triggers notify on.
const NotifyChannel = "opinion_map_changes"

// tableTopics routes a changed table to the topic its clients watch.
var tableTopics = map[string]string{
	"posts":        TopicPosts,
	"replies":      TopicPosts,
	"likes":        TopicPosts,
	"ai_responses": TopicPosts,
	"documents":    TopicDocuments,
}

type notification struct {
	Table string          `json:"table"`
	Op    string          `json:"op"`
	ID    json.RawMessage `json:"id"`
}

// EventFromPayload decodes a trigger payload. Tables nobody watches are
// reported with ok false.
func EventFromPayload(payload string) (Event, bool) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Event{}, false
	}
	topic, ok := tableTopics[n.Table]
	if !ok {
		return Event{}, false
	}
	id := string(n.ID)
	var s string
	if json.Unmarshal(n.ID, &s) == nil {
		id = s
	}
	if id == "null" {
		id = ""
	}
	return Event{Topic: topic, Table: n.Table, Op: n.Op, ID: id, At: time.Now()}, true
}

const triggerFunction = `
CREATE OR REPLACE FUNCTION %[1]s.notify_change() RETURNS trigger AS $$
DECLARE
	row_id text;
BEGIN
	IF TG_OP = 'DELETE' THEN
		row_id := to_jsonb(OLD)->>'id';
		IF row_id IS NULL THEN row_id := to_jsonb(OLD)->>'post_id'; END IF;
	ELSE
		row_id := to_jsonb(NEW)->>'id';
		IF row_id IS NULL THEN row_id := to_jsonb(NEW)->>'post_id'; END IF;
	END IF;
	PERFORM pg_notify('%[2]s', json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'id', row_id)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// EnsureTriggers installs the change triggers on every watched table of
// schema. The tables must already exist.
func EnsureTriggers(gdb *gorm.DB, schema string) error {
	if err := gdb.Exec(fmt.Sprintf(triggerFunction, schema, NotifyChannel)).Error; err != nil {
		return fmt.Errorf("create notify function: %w", err)
	}
	for table := range tableTopics {
		name := table + "_notify_change"
		stmts := []string{
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s.%s`, name, schema, table),
			fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s.%s FOR EACH ROW EXECUTE FUNCTION %s.notify_change()`,
				name, schema, table, schema),
		}
		for _, stmt := range stmts {
			if err := gdb.Exec(stmt).Error; err != nil {
				return fmt.Errorf("install trigger on %s: %w", table, err)
			}
		}
	}
	return nil
}

// Listener turns Postgres notifications into hub events.
type Listener struct {
	DSN string
	Hub *Hub
	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration
}

// reconnectBackoff doubles from min up to max and starts over after Reset.
type reconnectBackoff struct {
	min, max, cur time.Duration
}

func newReconnectBackoff(first, limit time.Duration) *reconnectBackoff {
	return &reconnectBackoff{min: first, max: limit, cur: first}
}

// Next returns the delay to wait now and grows the following one.
func (b *reconnectBackoff) Next() time.Duration {
	d := b.cur
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return d
}

func (b *reconnectBackoff) Reset() { b.cur = b.min }

// Run listens until ctx is cancelled, reconnecting with backoff when the
// connection drops. The delay starts over once a connection is listening.
func (l *Listener) Run(ctx context.Context) {
	log := logger.For("realtime")
	maxBackoff := l.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := newReconnectBackoff(time.Second, maxBackoff)
	for {
		err := l.listen(ctx, backoff.Reset)
		if ctx.Err() != nil {
			return
		}
		delay := backoff.Next()
		log.Warn("notification listener stopped, reconnecting", "err", err, "backoff", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := pgx.Connect(ctx, l.DSN)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.For("realtime").Info("listening for changes", "channel", NotifyChannel)
	connected()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, ok := EventFromPayload(n.Payload)
		if !ok {
			continue
		}
		l.Hub.Publish(ev)
	}
}
