package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/nscache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const (
	defaultScanCount = 500
	delBatch         = 500
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	scanCount   int64
}

var _ pr.Provider = (*Redis)(nil)

// Config describes a standalone connection. Zero values fall back to the
// go-redis defaults except DialTimeout, which bounds the initial connect.
type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
	// OpTimeout is used as both read and write timeout. The cache also applies
	// its own per-call deadline.
	OpTimeout time.Duration
	PoolSize  int
	// ScanCount is the COUNT hint for SCAN during key enumeration.
	ScanCount int64
}

// New builds a provider that owns its client. No connection is made until the
// first command; callers decide availability with Ping.
func New(cfg Config) *Redis {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		PoolSize:     cfg.PoolSize,
		// the cache reports failures as misses; retries only stretch an outage
		MaxRetries: -1,
	})
	p := &Redis{rdb: rdb, closeClient: true, scanCount: cfg.ScanCount}
	if p.scanCount <= 0 {
		p.scanCount = defaultScanCount
	}
	return p
}

// NewWithClient wraps an existing client. Set owns only if this provider
// exclusively owns the client and should close it.
func NewWithClient(client goredis.UniversalClient, owns bool) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: client, closeClient: owns, scanCount: defaultScanCount}, nil
}

// Client exposes the underlying client for callers that need raw access.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.rdb.SetEx(ctx, key, value, ttl).Err()
}

// Del removes keys in batches so a large flush does not build one huge command.
func (p *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	var total int64
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		n, err := p.rdb.Del(ctx, keys[start:end]...).Result()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys walks the keyspace with SCAN MATCH instead of KEYS so the server is never
// blocked for the whole enumeration. Duplicates that SCAN may return during a
// rehash are dropped.
func (p *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	var cursor uint64
	for {
		batch, next, err := p.rdb.Scan(ctx, cursor, pattern, p.scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (p *Redis) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return p.rdb.IncrBy(ctx, key, n).Result()
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return p.rdb.Expire(ctx, key, ttl).Result()
}

// TTL maps the Redis replies: -2 (absent) => ok=false, -1 (persistent) => -1.
func (p *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := p.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	switch {
	case d == -2:
		return 0, false, nil
	case d < 0:
		return -1, true, nil
	default:
		return d, true, nil
	}
}

func (p *Redis) Info(ctx context.Context, section string) (string, error) {
	if section == "" {
		return p.rdb.Info(ctx).Result()
	}
	return p.rdb.Info(ctx, section).Result()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
