package config

import (
	"fmt"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/provider/redis"
)

// Provider builds the redis provider described by the cache section.
func (c CacheConfig) Provider() *redis.Redis {
	return redis.New(redis.Config{
		Host:        c.Host,
		Port:        c.Port,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.ConnectTimeout.Std(),
		OpTimeout:   c.OpTimeout.Std(),
	})
}

// Options maps the cache section onto nscache.Options. The provider is created
// here and owned by the cache built from the result.
func (c CacheConfig) Options(log nscache.Logger, hooks nscache.Hooks) (nscache.Options, error) {
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nscache.Options{}, fmt.Errorf("CACHE_CODEC: %w", err)
	}
	return nscache.Options{
		Prefix:         c.Prefix,
		Provider:       c.Provider(),
		Codec:          cd,
		Logger:         log,
		Hooks:          hooks,
		DefaultTTL:     c.TTL.Std(),
		ConnectTimeout: c.ConnectTimeout.Std(),
		OpTimeout:      c.OpTimeout.Std(),
		Disabled:       !c.Enabled,
		Debug:          c.Debug,
	}, nil
}
