package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const queueKey = "notification_queue"

// Message is one queued notification. The worker resolves the user's
// email at delivery time; the enqueuing operation never waits on it.
type Message struct {
	UserID   int64             `json:"user_id"`
	Kind     string            `json:"kind"`
	Payload  map[string]string `json:"payload,omitempty"`
	QueuedAt time.Time         `json:"queued_at"`
}

// Dispatcher hands notifications to a Redis list and drains it in the
// background. It is fire-and-forget: enqueue failures are logged and
// swallowed, and a nil Redis client degrades to logging only.
type Dispatcher struct {
	redis *redis.Client
	db    *sql.DB
}

func NewDispatcher(redisClient *redis.Client, db *sql.DB) *Dispatcher {
	return &Dispatcher{redis: redisClient, db: db}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, kind string, payload map[string]string) {
	msg := Message{UserID: userID, Kind: kind, Payload: payload, QueuedAt: time.Now()}

	if d.redis == nil {
		log.Printf("[NOTIFY] queue unavailable, dropping %s notification for user %d", kind, userID)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[NOTIFY] failed to encode %s notification: %v", kind, err)
		return
	}
	if err := d.redis.RPush(ctx, queueKey, string(data)).Err(); err != nil {
		log.Printf("[NOTIFY] failed to enqueue %s notification for user %d: %v", kind, userID, err)
	}
}

// Run drains the queue until ctx is canceled. Intended to be started
// once from main as a goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.redis == nil {
		return
	}
	for {
		result, err := d.redis.BLPop(ctx, 5*time.Second, queueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err != redis.Nil {
				log.Printf("[NOTIFY] queue read failed: %v", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			log.Printf("[NOTIFY] dropping undecodable message: %v", err)
			continue
		}
		d.deliver(ctx, msg)
	}
}

// deliver resolves the recipient and hands off to the mail transport.
// Delivery is best-effort with no retry; a user without an email is
// skipped silently.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	var email string
	err := d.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, msg.UserID).Scan(&email)
	if err != nil || email == "" {
		if err != nil && err != sql.ErrNoRows {
			log.Printf("[NOTIFY] recipient lookup failed for user %d: %v", msg.UserID, err)
		}
		return
	}

	// Delivery currently terminates at the log; the SMTP relay is not
	// provisioned in this environment.
	log.Printf("[NOTIFY] %s -> %s: %v", msg.Kind, email, msg.Payload)
}
