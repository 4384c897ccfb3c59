package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

// RedisRegistry keeps driver positions in a Redis GEO set plus a metadata
// hash per driver, so the admin map survives server restarts and the
// consumer process can feed it from the Kafka location stream.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

func NewRedisRegistry(addr, password, key string) *RedisRegistry {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisRegistry{client: c, key: key}
}

func NewRedisRegistryFromClient(c *redis.Client, key string) *RedisRegistry {
	return &RedisRegistry{client: c, key: key}
}

func metaKey(id string) string { return "driver:presence:" + id }

func (r *RedisRegistry) Update(ctx context.Context, s models.LocationSample) error {
	if s.Updated.IsZero() {
		s.Updated = time.Now()
	}
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: s.Lng, Latitude: s.Lat, Name: s.DriverID,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(s.DriverID), map[string]interface{}{
		"heading": strconv.FormatFloat(s.Heading, 'f', -1, 64),
		"name":    s.Name,
		"avatar":  s.Avatar,
		"updated": s.Updated.Format(time.RFC3339),
	}).Err()
}

func (r *RedisRegistry) Get(ctx context.Context, driverID string) (models.LocationSample, bool) {
	pos, err := r.client.GeoPos(ctx, r.key, driverID).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		return models.LocationSample{}, false
	}
	s := models.LocationSample{DriverID: driverID, Lat: pos[0].Latitude, Lng: pos[0].Longitude}
	if m, err := r.client.HGetAll(ctx, metaKey(driverID)).Result(); err == nil {
		if v, ok := m["heading"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.Heading = f
			}
		}
		s.Name = m["name"]
		s.Avatar = m["avatar"]
		if v, ok := m["updated"]; ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				s.Updated = t
			}
		}
	}
	return s, true
}

func (r *RedisRegistry) Remove(ctx context.Context, driverID string) error {
	if err := r.client.ZRem(ctx, r.key, driverID).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, metaKey(driverID)).Err()
}
