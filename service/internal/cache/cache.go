// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/vmihailenco/msgpack/v5"
)

// Rdb is the shared client. It stays nil when no redis URL is configured.
var Rdb *redis.Client

// SnapshotTTL bounds how long the latest snapshot of a session is kept.
var SnapshotTTL = time.Hour

// ErrNoClient is returned when Rdb is nil.
var ErrNoClient = errors.New("cache: redis client not connected")

// Connect parses url, pings the server and installs the client as Rdb.
func Connect(ctx context.Context, url string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("cache: parse url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("cache: ping: %w", err)
	}
	Rdb = c
	return nil
}

// StepRecord is one tick of a session as pushed to the step stream.
type StepRecord struct {
	SessionID uuid.UUID       `msgpack:"session_id"`
	EpisodeID uuid.UUID       `msgpack:"episode_id"`
	Index     int             `msgpack:"index"`
	TimeStep  int             `msgpack:"time_step"`
	Actions   []engine.Action `msgpack:"actions"`
	Reward    float64         `msgpack:"reward"`
	Terminal  bool            `msgpack:"terminal"`
	Digest    string          `msgpack:"digest"`
	Timestamp int64           `msgpack:"ts"`
}

// StepsKey is the list holding the step records of a session.
func StepsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("gridrl:session:%s:steps", sessionID)
}

// SnapshotKey holds the msgpack snapshot of the latest session state.
func SnapshotKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("gridrl:session:%s:snapshot", sessionID)
}

// EncodeStepRecord returns the wire form of rec.
func EncodeStepRecord(rec StepRecord) ([]byte, error) {
	return msgpack.Marshal(&rec)
}

// DecodeStepRecord parses a payload produced by EncodeStepRecord.
func DecodeStepRecord(b []byte) (StepRecord, error) {
	var rec StepRecord
	err := msgpack.Unmarshal(b, &rec)
	return rec, err
}

// PublishStepRecord appends rec to the session step list.
func PublishStepRecord(ctx context.Context, rec StepRecord) error {
	if Rdb == nil {
		return ErrNoClient
	}
	b, err := EncodeStepRecord(rec)
	if err != nil {
		return fmt.Errorf("cache: encode step %d: %w", rec.Index, err)
	}
	return Rdb.RPush(ctx, StepsKey(rec.SessionID), b).Err()
}

// SaveSnapshot stores the latest snapshot of a session.
func SaveSnapshot(ctx context.Context, sessionID uuid.UUID, snap engine.Snapshot) error {
	if Rdb == nil {
		return ErrNoClient
	}
	b, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	return Rdb.Set(ctx, SnapshotKey(sessionID), b, SnapshotTTL).Err()
}

// LoadSnapshot returns the stored snapshot of a session. ok is false when
// none is stored.
func LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (snap engine.Snapshot, ok bool, err error) {
	if Rdb == nil {
		return snap, false, ErrNoClient
	}
	b, err := Rdb.Get(ctx, SnapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := msgpack.Unmarshal(b, &snap); err != nil {
		return snap, false, fmt.Errorf("cache: decode snapshot: %w", err)
	}
	return snap, true, nil
}

// DeleteSession removes everything stored for a session.
func DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if Rdb == nil {
		return ErrNoClient
	}
	return Rdb.Del(ctx, StepsKey(sessionID), SnapshotKey(sessionID)).Err()
}
