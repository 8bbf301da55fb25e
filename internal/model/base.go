package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Touch stamps a new or updated record.
func (b *Base) Touch(now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// ListOptions are shared paging and search parameters.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) { return jsonValue(m) }
func (m *JSONMap) Scan(src interface{}) error  { return jsonScan(src, m) }

// StringList is a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *StringList) Scan(src interface{}) error  { return jsonScan(src, l) }

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func jsonScan(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Join(errors.New("failed to decode JSON column"), err)
	}
	return nil
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
