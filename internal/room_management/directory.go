package room_management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"whiteboard/internal/models"
)

const (
	roomKeyPrefix = "room:"
	eventsChannel = "rooms"
)

// Directory is the Redis-backed catalog of rooms: name, creator, creation
// time and an advisory occupancy count. It never holds room state — draw
// history, cursors and code live only in the in-memory registry and do not
// survive a restart.
type Directory struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewDirectory(redisAddr string, log *zap.Logger) *Directory {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &Directory{rdb: rdb, log: log}
}

// NewDirectoryWithClient wires an existing client (used in tests).
func NewDirectoryWithClient(rdb *redis.Client, log *zap.Logger) *Directory {
	return &Directory{rdb: rdb, log: log}
}

// CreateRoom registers a new directory entry and announces it on the rooms
// channel.
func (d *Directory) CreateRoom(ctx context.Context, name string, creator models.Creator) (*models.RoomInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("room name is required")
	}
	info := &models.RoomInfo{
		ID:        uuid.New().String(),
		Name:      name,
		Creator:   creator,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.put(ctx, info); err != nil {
		return nil, err
	}
	d.publish(ctx, models.RoomEvent{Type: models.RoomEventOpened, RoomID: info.ID})
	return info, nil
}

// GetRoom returns one directory entry, or nil when the id is unknown.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (*models.RoomInfo, error) {
	payload, err := d.rdb.Get(ctx, roomKeyPrefix+roomID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory get: %w", err)
	}
	var info models.RoomInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return nil, fmt.Errorf("directory get: decode %s: %w", roomID, err)
	}
	return &info, nil
}

// ListRooms returns every directory entry.
func (d *Directory) ListRooms(ctx context.Context) ([]models.RoomInfo, error) {
	rooms := []models.RoomInfo{}
	iter := d.rdb.Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		payload, err := d.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var info models.RoomInfo
		if err := json.Unmarshal([]byte(payload), &info); err != nil {
			d.log.Warn("directory: skipping corrupt entry", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		rooms = append(rooms, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("directory list: %w", err)
	}
	return rooms, nil
}

// DeleteRoom removes a directory entry. Idempotent.
func (d *Directory) DeleteRoom(ctx context.Context, roomID string) error {
	if err := d.rdb.Del(ctx, roomKeyPrefix+roomID).Err(); err != nil {
		return fmt.Errorf("directory delete: %w", err)
	}
	d.publish(ctx, models.RoomEvent{Type: models.RoomEventClosed, RoomID: roomID})
	return nil
}

// Presence hooks called by the session hub. Occupancy is best-effort
// metadata; failures are logged, never surfaced to the event path.

func (d *Directory) RoomOpened(roomID string) {
	d.publish(context.Background(), models.RoomEvent{Type: models.RoomEventOpened, RoomID: roomID, Occupancy: 1})
}

func (d *Directory) RoomClosed(roomID string) {
	ctx := context.Background()
	d.setOccupancy(ctx, roomID, 0)
	d.publish(ctx, models.RoomEvent{Type: models.RoomEventClosed, RoomID: roomID})
}

func (d *Directory) RoomOccupancy(roomID string, count int) {
	ctx := context.Background()
	d.setOccupancy(ctx, roomID, count)
	d.publish(ctx, models.RoomEvent{Type: models.RoomEventOccupancy, RoomID: roomID, Occupancy: count})
}

// Subscribe consumes room lifecycle events until ctx is cancelled. Other
// instances (or operators) can watch the rooms channel for activity.
func (d *Directory) Subscribe(ctx context.Context) {
	pubsub := d.rdb.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	d.log.Info("directory: subscribed to room events")

	for {
		select {
		case <-ctx.Done():
			d.log.Info("directory: stopping room event subscriber")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				d.log.Warn("directory: bad room event", zap.Error(err))
				continue
			}
			d.log.Info("directory: room event",
				zap.String("type", event.Type),
				zap.String("roomId", event.RoomID),
				zap.Int("occupancy", event.Occupancy))
		}
	}
}

func (d *Directory) put(ctx context.Context, info *models.RoomInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("directory put: marshal: %w", err)
	}
	if err := d.rdb.Set(ctx, roomKeyPrefix+info.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("directory put: %w", err)
	}
	return nil
}

func (d *Directory) setOccupancy(ctx context.Context, roomID string, count int) {
	info, err := d.GetRoom(ctx, roomID)
	if err != nil || info == nil {
		return
	}
	info.Occupancy = count
	if err := d.put(ctx, info); err != nil {
		d.log.Warn("directory: occupancy update failed", zap.String("roomId", roomID), zap.Error(err))
	}
}

func (d *Directory) publish(ctx context.Context, event models.RoomEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := d.rdb.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		d.log.Warn("directory: publish failed", zap.String("roomId", event.RoomID), zap.Error(err))
	}
}
