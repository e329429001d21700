package cache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// MemoryDurable 进程内持久层实现，用于测试和单进程部署
type MemoryDurable struct {
	mu     sync.RWMutex
	data   map[string]*memoryItem
	tags   *TagIndex
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// memoryItem 缓存项
type memoryItem struct {
	value     []byte
	tags      []string
	expiresAt time.Time
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryDurable 创建内存持久层。cleanupInterval > 0 时启动过期清理协程
func NewMemoryDurable(cleanupInterval time.Duration) *MemoryDurable {
	d := &MemoryDurable{
		data:   make(map[string]*memoryItem),
		tags:   NewTagIndex(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go d.cleanupLoop(cleanupInterval)
	}
	return d
}

func (d *MemoryDurable) Name() string {
	return DriverMemory
}

func (d *MemoryDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	d.mu.RLock()
	item, ok := d.data[key]
	d.mu.RUnlock()

	if !ok || item.expired(d.now()) {
		return nil, false, nil
	}
	return item.value, true, nil
}

func (d *MemoryDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = d.now().Add(ttl)
	}
	if old, ok := d.data[key]; ok {
		d.tags.Remove(key, old.tags)
	}
	tags = normalizeTags(tags)
	d.data[key] = &memoryItem{value: value, tags: tags, expiresAt: expiresAt}
	d.tags.Add(key, tags)
	return nil
}

func (d *MemoryDurable) Delete(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(key, d.now()), nil
}

func (d *MemoryDurable) DeleteByTag(ctx context.Context, tag string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	n := 0
	for _, key := range d.tags.Keys(tag) {
		if d.removeLocked(key, now) {
			n++
		}
	}
	return n, nil
}

func (d *MemoryDurable) DeleteMatching(ctx context.Context, re *regexp.Regexp) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	n := 0
	for key := range d.data {
		if re.MatchString(key) && d.removeLocked(key, now) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds
func (d *MemoryDurable) Ping(ctx context.Context) error {
	return nil
}

// Len 返回当前条目数（含未清理的过期条目）
func (d *MemoryDurable) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.data)
}

// Close 停止清理协程并清空数据
func (d *MemoryDurable) Close() error {
	d.once.Do(func() { close(d.stopCh) })
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = make(map[string]*memoryItem)
	d.tags = NewTagIndex()
	return nil
}

// removeLocked deletes key and reports whether it was live
func (d *MemoryDurable) removeLocked(key string, now time.Time) bool {
	item, ok := d.data[key]
	if !ok {
		return false
	}
	delete(d.data, key)
	d.tags.Remove(key, item.tags)
	return !item.expired(now)
}

// cleanupLoop 定期清理过期条目
func (d *MemoryDurable) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-d.stopCh:
			return
		}
	}
}

func (d *MemoryDurable) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, item := range d.data {
		if item.expired(now) {
			delete(d.data, key)
			d.tags.Remove(key, item.tags)
		}
	}
}
