package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUnknownKey indicates a preference the client does not define.
	ErrUnknownKey = errors.New("preferences: unknown key")
	// ErrInvalidValue indicates a value other than "true" or "false".
	ErrInvalidValue = errors.New("preferences: invalid value")
)

// ServiceConfig describes the dependencies of the preference service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service reads and writes the durable notification opt-ins. Values are
// cached after the first read; writes go through to the database.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the preference service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("preferences: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Enabled reports whether a boolean preference is "true". A missing
// preference is initialized to "false".
func (s *Service) Enabled(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return value == valueTrue, nil
}

// Get returns the stored value, initializing it to "false" when absent.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !isKnownKey(key) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if cached, ok := s.cache.Load(key); ok {
		if value, ok := cached.(string); ok {
			return value, nil
		}
	}

	var record Record
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&record).Error
	switch {
	case err == nil:
		s.cache.Store(key, record.Value)
		return record.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		initial := Record{Key: key, Value: valueFalse, UpdatedAtSeconds: s.now().UTC().Unix()}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&initial).Error; err != nil {
			return "", fmt.Errorf("preferences: initialize %s: %w", key, err)
		}
		s.cache.Store(key, valueFalse)
		return valueFalse, nil
	default:
		return "", fmt.Errorf("preferences: load %s: %w", key, err)
	}
}

// Set stores a preference value.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized != valueTrue && normalized != valueFalse {
		return fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	record := Record{Key: key, Value: normalized, UpdatedAtSeconds: s.now().UTC().Unix()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_s"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("preferences: store %s: %w", key, err)
	}
	s.cache.Store(key, normalized)
	return nil
}

// All returns every known preference.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string, len(Keys()))
	for _, key := range Keys() {
		value, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}
