package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

type Storage struct {
	KV *KVStorage
}

func New(db *gorm.DB) *Storage {
	return &Storage{
		KV: &KVStorage{db: db},
	}
}

// KeyValue is the durable string-keyed store backing the auth state. Values
// are whole-value replacements, never partial updates.
type KeyValue struct {
	Key       string `gorm:"index:idx_kv_key,unique"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KeyValue) TableName() string {
	return "key_values"
}

type KVStorage struct {
	db *gorm.DB
}

func (s *KVStorage) Get(key string) (string, error) {
	var kv *KeyValue
	if tx := s.db.Where("key = ?", key).First(&kv); tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", tx.Error
	}
	return kv.Value, nil
}

func (s *KVStorage) Set(key, value string) error {
	result := s.db.
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			},
		).
		Create(&KeyValue{Key: key, Value: value})

	return result.Error
}

func (s *KVStorage) Delete(key string) error {
	if tx := s.db.Where("key = ?", key).Delete(&KeyValue{}); tx.Error != nil {
		return tx.Error
	}
	return nil
}
