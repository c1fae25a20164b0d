// Package store provides the durable local database for the device agent.
//
// Pending questions, the push identity and the registration retry record
// live in disjoint tables of a single SQLite file; the store is the only
// component that touches it.
package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

// identitySlot keys the single-row tables. There is at most one push
// identity and one outstanding retry record per installation.
const identitySlot = 1

// PendingQuestion is a locally queued, not-yet-synchronized question.
// Its ID is local-only and never confused with the server-assigned one.
type PendingQuestion struct {
	ID           string `gorm:"primaryKey;column:id"`
	Category     string `gorm:"column:category"`
	QuestionText string `gorm:"column:question_text"`
	EnqueuedAtMs int64  `gorm:"column:enqueued_at_ms;index"`
}

func (PendingQuestion) TableName() string { return "pending_questions" }

// PushIdentity is the locally held push token and its registration status.
type PushIdentity struct {
	Slot         int    `gorm:"primaryKey;column:slot"`
	TokenValue   string `gorm:"column:token_value"`
	DeviceType   string `gorm:"column:device_type"`
	CapturedAtMs int64  `gorm:"column:captured_at_ms"`
	Registered   bool   `gorm:"column:registered"`
}

func (PushIdentity) TableName() string { return "push_identity" }

// RegistrationRetry tracks the single outstanding failed registration.
// A new failure overwrites the slot rather than appending.
type RegistrationRetry struct {
	Slot          int    `gorm:"primaryKey;column:slot"`
	TokenValue    string `gorm:"column:token_value"`
	DeviceType    string `gorm:"column:device_type"`
	AttemptCount  int    `gorm:"column:attempt_count"`
	LastAttemptMs int64  `gorm:"column:last_attempt_ms"`
}

func (RegistrationRetry) TableName() string { return "registration_retry" }

// Store wraps the SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	if err := db.AutoMigrate(&PendingQuestion{}, &PushIdentity{}, &RegistrationRetry{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return &Store{db: db}, nil
}

// AddPending persists a new pending question.
func (s *Store) AddPending(q PendingQuestion) error {
	if err := s.db.Create(&q).Error; err != nil {
		return fmt.Errorf("add pending question: %w", err)
	}
	return nil
}

// GetPending retrieves a single pending question by its local id.
func (s *Store) GetPending(id string) (PendingQuestion, error) {
	var q PendingQuestion
	if err := s.db.Where("id = ?", id).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PendingQuestion{}, ErrNotFound
		}
		return PendingQuestion{}, fmt.Errorf("get pending question: %w", err)
	}
	return q, nil
}

// ListPending returns all pending questions, oldest first.
func (s *Store) ListPending() ([]PendingQuestion, error) {
	var out []PendingQuestion
	if err := s.db.Order("enqueued_at_ms asc, id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list pending questions: %w", err)
	}
	return out, nil
}

// UpdatePending applies a partial update to a still-pending question.
// Returns ErrNotFound if no record with that id exists.
func (s *Store) UpdatePending(id string, fields map[string]interface{}) error {
	res := s.db.Model(&PendingQuestion{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update pending question: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePending removes a pending question. Deleting a non-existent id is
// not an error.
func (s *Store) DeletePending(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&PendingQuestion{}).Error; err != nil {
		return fmt.Errorf("delete pending question: %w", err)
	}
	return nil
}

// ClearPending empties the pending queue.
func (s *Store) ClearPending() error {
	if err := s.db.Where("1 = 1").Delete(&PendingQuestion{}).Error; err != nil {
		return fmt.Errorf("clear pending questions: %w", err)
	}
	return nil
}

// CountPending returns the number of queued questions.
func (s *Store) CountPending() (int64, error) {
	var n int64
	if err := s.db.Model(&PendingQuestion{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count pending questions: %w", err)
	}
	return n, nil
}

// SaveIdentity overwrites the stored push identity.
func (s *Store) SaveIdentity(id PushIdentity) error {
	id.Slot = identitySlot
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&id).Error
	if err != nil {
		return fmt.Errorf("save push identity: %w", err)
	}
	return nil
}

// LoadIdentity returns the stored push identity, or ErrNotFound.
func (s *Store) LoadIdentity() (PushIdentity, error) {
	var id PushIdentity
	if err := s.db.Where("slot = ?", identitySlot).First(&id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PushIdentity{}, ErrNotFound
		}
		return PushIdentity{}, fmt.Errorf("load push identity: %w", err)
	}
	return id, nil
}

// DeleteIdentity removes the stored push identity.
func (s *Store) DeleteIdentity() error {
	if err := s.db.Where("slot = ?", identitySlot).Delete(&PushIdentity{}).Error; err != nil {
		return fmt.Errorf("delete push identity: %w", err)
	}
	return nil
}

// SaveRetry overwrites the registration retry record.
func (s *Store) SaveRetry(r RegistrationRetry) error {
	r.Slot = identitySlot
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&r).Error
	if err != nil {
		return fmt.Errorf("save retry record: %w", err)
	}
	return nil
}

// LoadRetry returns the registration retry record, or ErrNotFound.
func (s *Store) LoadRetry() (RegistrationRetry, error) {
	var r RegistrationRetry
	if err := s.db.Where("slot = ?", identitySlot).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RegistrationRetry{}, ErrNotFound
		}
		return RegistrationRetry{}, fmt.Errorf("load retry record: %w", err)
	}
	return r, nil
}

// DeleteRetry removes the registration retry record. Deleting an absent
// record is not an error.
func (s *Store) DeleteRetry() error {
	if err := s.db.Where("slot = ?", identitySlot).Delete(&RegistrationRetry{}).Error; err != nil {
		return fmt.Errorf("delete retry record: %w", err)
	}
	return nil
}
