package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hiroki-koketsu/upahead/internal/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a key-value view over the local_storage table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the value under key; ok is false when none is stored.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	var e Entry
	err = s.db.WithContext(ctx).Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// persisted is the envelope the session is stored in.
type persisted struct {
	State   auth.SessionState `json:"state"`
	Version int               `json:"version"`
}

// LoadSession implements auth.SessionPersister.
func (s *Store) LoadSession(ctx context.Context) (auth.SessionState, bool, error) {
	raw, ok, err := s.Get(ctx, AuthKey)
	if err != nil || !ok {
		return auth.SessionState{}, false, err
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return auth.SessionState{}, false, fmt.Errorf("decode %s: %w", AuthKey, err)
	}
	return p.State, true, nil
}

// SaveSession implements auth.SessionPersister.
func (s *Store) SaveSession(ctx context.Context, state auth.SessionState) error {
	data, err := json.Marshal(persisted{State: state})
	if err != nil {
		return err
	}
	return s.Set(ctx, AuthKey, string(data))
}
