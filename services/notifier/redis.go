package notifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// alertField is the stream entry field holding the base64 encoded alert
const alertField = "b64_alert"

// RedisNotifier hands alerts to consumers through Redis streams
type RedisNotifier struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisNotifier creates a new Redis stream notifier
func NewRedisNotifier(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if streamCount <= 0 {
		streamCount = 1
	}

	return &RedisNotifier{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the Redis connection
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Notify publishes the alert to one of the streams, chosen at random.
// With streamCount 3 the stream names are prefix:0 ~ prefix:2.
func (n *RedisNotifier) Notify(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	stream := n.streamPrefix + ":" + strconv.Itoa(rand.IntN(n.streamCount))

	return n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			alertField: base64.StdEncoding.EncodeToString(payload),
		},
	}).Err()
}

// TrimStreams trims all streams to the configured maximum length
func (n *RedisNotifier) TrimStreams(ctx context.Context) error {
	if n.streamMaxLength <= 0 {
		return nil
	}

	for i := 0; i < n.streamCount; i++ {
		stream := n.streamPrefix + ":" + strconv.Itoa(i)
		if err := n.client.XTrimMaxLen(ctx, stream, int64(n.streamMaxLength)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// DecodeAlert reverses the stream encoding used by Notify
func DecodeAlert(values map[string]interface{}) (Alert, error) {
	var alert Alert
	raw, ok := values[alertField].(string)
	if !ok {
		return alert, fmt.Errorf("stream entry has no %s field", alertField)
	}
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return alert, err
	}
	err = json.Unmarshal(payload, &alert)
	return alert, err
}
