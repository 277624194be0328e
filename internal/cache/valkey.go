package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cineledger/internal/models"
)

type Config struct {
	Addr       string
	Password   string
	DB         int
	SeatMapTTL time.Duration
}

// SeatMapCache keeps a short-lived copy of each showtime's seat map. The
// ledger in Postgres stays authoritative: entries are dropped on every seat
// mutation and reads fall back to the database on any cache error.
type SeatMapCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeatMapCache(cfg Config) (*SeatMapCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.SeatMapTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &SeatMapCache{
		client: rdb,
		ttl:    ttl,
	}, nil
}

func seatMapKey(showtimeID int64) string {
	return "seatmap:" + strconv.FormatInt(showtimeID, 10)
}

// Get returns the cached seat map, or nil on a miss
func (c *SeatMapCache) Get(ctx context.Context, showtimeID int64) (*models.SeatMapResponse, error) {
	raw, err := c.client.Get(ctx, seatMapKey(showtimeID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var seatMap models.SeatMapResponse
	if err := json.Unmarshal(raw, &seatMap); err != nil {
		return nil, fmt.Errorf("invalid seat map in cache: %w", err)
	}

	return &seatMap, nil
}

func (c *SeatMapCache) Set(ctx context.Context, seatMap *models.SeatMapResponse) error {
	raw, err := json.Marshal(seatMap)
	if err != nil {
		return fmt.Errorf("failed to marshal seat map: %w", err)
	}

	return c.client.Set(ctx, seatMapKey(seatMap.ShowtimeID), raw, c.ttl).Err()
}

func (c *SeatMapCache) Invalidate(ctx context.Context, showtimeIDs ...int64) error {
	if len(showtimeIDs) == 0 {
		return nil
	}

	keys := make([]string, len(showtimeIDs))
	for i, id := range showtimeIDs {
		keys[i] = seatMapKey(id)
	}

	return c.client.Del(ctx, keys...).Err()
}

func (c *SeatMapCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SeatMapCache) Close() error {
	return c.client.Close()
}
