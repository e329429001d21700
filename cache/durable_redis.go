package cache

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTagSegment     = "tag:"
	redisKeyTagsSegment = "keytags:"
	redisScanCount      = 100
)

// RedisDurable Redis 持久层
//
// Layout under keyPrefix:
//
//	<prefix><key>           value, with the entry TTL
//	<prefix>tag:<tag>       set of keys carrying tag
//	<prefix>keytags:<key>   set of tags on key, so overwrites and deletes can prune tag sets
//
// Keys beginning with "tag:" or "keytags:" are reserved.
type RedisDurable struct {
	client    redis.UniversalClient
	keyPrefix string
	owned     bool
}

// NewRedisDurable 创建 Redis 持久层。client 由调用方管理，Close 不会关闭它
func NewRedisDurable(client redis.UniversalClient, keyPrefix string) *RedisDurable {
	return &RedisDurable{client: client, keyPrefix: keyPrefix}
}

func (d *RedisDurable) Name() string {
	return DriverRedis
}

func (d *RedisDurable) buildKey(key string) string {
	return d.keyPrefix + key
}

func (d *RedisDurable) tagKey(tag string) string {
	return d.keyPrefix + redisTagSegment + tag
}

func (d *RedisDurable) keyTagsKey(key string) string {
	return d.keyPrefix + redisKeyTagsSegment + key
}

func (d *RedisDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := d.client.Get(ctx, d.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, ErrDurableTier.Wrap(err)
	}
	return value, true, nil
}

func (d *RedisDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl < 0 {
		ttl = 0
	}
	oldTags, err := d.client.SMembers(ctx, d.keyTagsKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ErrDurableTier.Wrap(err)
	}
	tags = normalizeTags(tags)

	_, err = d.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range oldTags {
			p.SRem(ctx, d.tagKey(t), key)
		}
		p.Set(ctx, d.buildKey(key), value, ttl)
		p.Del(ctx, d.keyTagsKey(key))
		if len(tags) > 0 {
			p.SAdd(ctx, d.keyTagsKey(key), toMembers(tags)...)
			if ttl > 0 {
				p.Expire(ctx, d.keyTagsKey(key), ttl)
			}
			for _, t := range tags {
				p.SAdd(ctx, d.tagKey(t), key)
			}
		}
		return nil
	})
	if err != nil {
		return ErrDurableTier.Wrap(err)
	}
	return nil
}

func (d *RedisDurable) Delete(ctx context.Context, key string) (bool, error) {
	n, err := d.deleteKeys(ctx, []string{key}, "")
	return n > 0, err
}

func (d *RedisDurable) DeleteByTag(ctx context.Context, tag string) (int, error) {
	keys, err := d.client.SMembers(ctx, d.tagKey(tag)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, ErrDurableTier.Wrap(err)
	}
	n, err := d.deleteKeys(ctx, keys, tag)
	if err != nil {
		return n, err
	}
	if err := d.client.Del(ctx, d.tagKey(tag)).Err(); err != nil {
		return n, ErrDurableTier.Wrap(err)
	}
	return n, nil
}

// DeleteMatching 使用 SCAN 遍历前缀下的键，避免阻塞
func (d *RedisDurable) DeleteMatching(ctx context.Context, re *regexp.Regexp) (int, error) {
	fullKeys, err := d.scanKeys(ctx, d.keyPrefix+"*")
	if err != nil {
		return 0, err
	}
	var keys []string
	for _, full := range fullKeys {
		key := strings.TrimPrefix(full, d.keyPrefix)
		if strings.HasPrefix(key, redisTagSegment) || strings.HasPrefix(key, redisKeyTagsSegment) {
			continue
		}
		if re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	return d.deleteKeys(ctx, keys, "")
}

// deleteKeys removes values and their tag memberships. Membership in
// skipTag is left for the caller, which deletes that whole set.
func (d *RedisDurable) deleteKeys(ctx context.Context, keys []string, skipTag string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	tagCmds := make([]*redis.StringSliceCmd, len(keys))
	_, err := d.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			tagCmds[i] = p.SMembers(ctx, d.keyTagsKey(key))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, ErrDurableTier.Wrap(err)
	}

	delCmds := make([]*redis.IntCmd, len(keys))
	_, err = d.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			delCmds[i] = p.Del(ctx, d.buildKey(key))
			for _, t := range tagCmds[i].Val() {
				if t != skipTag {
					p.SRem(ctx, d.tagKey(t), key)
				}
			}
			p.Del(ctx, d.keyTagsKey(key))
		}
		return nil
	})
	if err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}

	n := 0
	for _, c := range delCmds {
		n += int(c.Val())
	}
	return n, nil
}

func (d *RedisDurable) scanKeys(ctx context.Context, match string) ([]string, error) {
	scan := func(ctx context.Context, c redis.Cmdable) ([]string, error) {
		var (
			cursor uint64
			keys   []string
		)
		for {
			batch, next, err := c.Scan(ctx, cursor, match, redisScanCount).Result()
			if err != nil {
				return nil, err
			}
			keys = append(keys, batch...)
			cursor = next
			if cursor == 0 {
				return keys, nil
			}
		}
	}

	if cluster, ok := d.client.(*redis.ClusterClient); ok {
		var (
			all []string
			mu  sync.Mutex
		)
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
			keys, err := scan(ctx, c)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, keys...)
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, ErrDurableTier.Wrap(err)
		}
		return all, nil
	}

	keys, err := scan(ctx, d.client)
	if err != nil {
		return nil, ErrDurableTier.Wrap(err)
	}
	return keys, nil
}

func (d *RedisDurable) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close 仅在客户端由工厂创建时关闭
func (d *RedisDurable) Close() error {
	if d.owned {
		return d.client.Close()
	}
	return nil
}

func toMembers(tags []string) []any {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return out
}
