// Package telemetry optionally mirrors workflow events into Redis,
// adapted from the HSet+Publish pipeline pattern the teacher uses to
// publish BLE sensor state (pkg/redis/client.go's WriteAndPublishString/
// WriteAndPublishInt), re-pointed at upload/read progress and outcomes
// and get-property values instead of BLE state.
package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink mirrors workflow events into a Redis hash (for the latest value
// of each field) and publishes them on a channel (for subscribers that
// want to follow an operation live). A nil *Sink is valid and every
// method on it is a no-op, so callers can unconditionally thread a Sink
// through the workflow layer whether or not --redis-addr was given.
type Sink struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// NewSink connects to a Redis server at addr and returns a Sink that
// mirrors events under the hash key (e.g. "blhost:upload"). Returns an
// error if the initial ping fails, mirroring the teacher's pkg/redis.New.
func NewSink(addr, password string, db int, key string) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetry: failed to connect to redis: %w", err)
	}

	return &Sink{client: client, ctx: ctx, key: key}, nil
}

// Progress mirrors a progress percentage under field "progress".
func (s *Sink) Progress(percent float64) {
	s.publishFloat("progress", percent)
}

// Outcome mirrors the terminal success/failure of an operation under
// field "success".
func (s *Sink) Outcome(success bool) {
	if s == nil {
		return
	}
	s.publish("success", strconv.FormatBool(success))
}

// PropertyValues mirrors the raw parameter words of a GetProperty
// response under field "values".
func (s *Sink) PropertyValues(values []uint32) {
	if s == nil {
		return
	}
	s.publish("values", fmt.Sprint(values))
}

func (s *Sink) publishFloat(field string, value float64) {
	if s == nil {
		return
	}
	s.publish(field, strconv.FormatFloat(value, 'f', 2, 64))
}

// publish writes field to the sink's hash and publishes "field:value" on
// the hash key as a channel, same pipeline shape as the teacher's
// WriteAndPublishString.
func (s *Sink) publish(field, value string) {
	pipe := s.client.Pipeline()
	pipe.HSet(s.ctx, s.key, field, value)
	pipe.Publish(s.ctx, s.key, fmt.Sprintf("%s:%s", field, value))
	if _, err := pipe.Exec(s.ctx); err != nil {
		logrus.Warnf("telemetry: failed to publish %s.%s: %v", s.key, field, err)
	}
}

// Close releases the underlying Redis connection. A nil Sink is a no-op.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
