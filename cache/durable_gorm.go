package cache

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/KOMKZ/go-yogan-cache/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cacheEntryRecord row in cache_entries. The key column is cache_key since
// KEY is reserved in mysql.
type cacheEntryRecord struct {
	Key       string     `gorm:"column:cache_key;primaryKey;size:512"`
	Value     []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (cacheEntryRecord) TableName() string { return "cache_entries" }

// cacheEntryTag row in cache_entry_tags
type cacheEntryTag struct {
	Key string `gorm:"column:cache_key;primaryKey;size:512"`
	Tag string `gorm:"primaryKey;size:255;index"`
}

func (cacheEntryTag) TableName() string { return "cache_entry_tags" }

// GormDurable SQL 持久层（sqlite / mysql / postgres）
type GormDurable struct {
	db    *gorm.DB
	now   func() time.Time
	owned bool
}

// NewGormDurable 创建 SQL 持久层并迁移表结构。db 由调用方管理
func NewGormDurable(db *gorm.DB) (*GormDurable, error) {
	if err := db.AutoMigrate(&cacheEntryRecord{}, &cacheEntryTag{}); err != nil {
		return nil, ErrDurableTier.Wrap(err)
	}
	return &GormDurable{db: db, now: time.Now}, nil
}

func (d *GormDurable) Name() string {
	return DriverGorm
}

func (d *GormDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec cacheEntryRecord
	err := d.db.WithContext(ctx).Where("cache_key = ?", key).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, ErrDurableTier.Wrap(err)
	}
	if rec.ExpiresAt != nil && d.now().After(*rec.ExpiresAt) {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (d *GormDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	rec := cacheEntryRecord{Key: key, Value: value, UpdatedAt: d.now()}
	if ttl > 0 {
		exp := d.now().Add(ttl)
		rec.ExpiresAt = &exp
	}
	tags = normalizeTags(tags)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("cache_key = ?", key).Delete(&cacheEntryTag{}).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		rows := make([]cacheEntryTag, len(tags))
		for i, t := range tags {
			rows[i] = cacheEntryTag{Key: key, Tag: t}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return ErrDurableTier.Wrap(err)
	}
	return nil
}

func (d *GormDurable) Delete(ctx context.Context, key string) (bool, error) {
	n, err := d.deleteKeys(ctx, []string{key})
	return n > 0, err
}

func (d *GormDurable) DeleteByTag(ctx context.Context, tag string) (int, error) {
	var keys []string
	if err := d.db.WithContext(ctx).Model(&cacheEntryTag{}).
		Where("tag = ?", tag).Pluck("cache_key", &keys).Error; err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}
	return d.deleteKeys(ctx, keys)
}

func (d *GormDurable) DeleteMatching(ctx context.Context, re *regexp.Regexp) (int, error) {
	var all []string
	if err := d.db.WithContext(ctx).Model(&cacheEntryRecord{}).Pluck("cache_key", &all).Error; err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}
	var keys []string
	for _, k := range all {
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	return d.deleteKeys(ctx, keys)
}

// deleteKeys removes rows and tags; the count excludes rows already expired
func (d *GormDurable) deleteKeys(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var live int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cacheEntryRecord{}).
			Where("cache_key IN ?", keys).
			Where("(expires_at IS NULL OR expires_at > ?)", d.now()).
			Count(&live).Error; err != nil {
			return err
		}
		if err := tx.Where("cache_key IN ?", keys).Delete(&cacheEntryRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("cache_key IN ?", keys).Delete(&cacheEntryTag{}).Error
	})
	if err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}
	return int(live), nil
}

// PurgeExpired deletes expired rows and their tags
func (d *GormDurable) PurgeExpired(ctx context.Context) (int, error) {
	var keys []string
	if err := d.db.WithContext(ctx).Model(&cacheEntryRecord{}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", d.now()).
		Pluck("cache_key", &keys).Error; err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_key IN ?", keys).Delete(&cacheEntryRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("cache_key IN ?", keys).Delete(&cacheEntryTag{}).Error
	})
	if err != nil {
		return 0, ErrDurableTier.Wrap(err)
	}
	return len(keys), nil
}

func (d *GormDurable) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 仅在连接由工厂创建时关闭
func (d *GormDurable) Close() error {
	if d.owned {
		return database.Close(d.db)
	}
	return nil
}
