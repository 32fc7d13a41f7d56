package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// runRecord is the relational shape of a stored run. The series themselves
// are kept as one JSON payload; the indexed columns exist for listing and
// filtering without decoding every run.
type runRecord struct {
	ID        string `gorm:"primaryKey"`
	Symbol    string `gorm:"index"`
	Timeframe string
	CreatedAt time.Time
	Payload   []byte
}

// SQLStorage implements the core.ResultStorage interface using GORM
type SQLStorage struct {
	lastID int64
	db     *gorm.DB
}

// FromSQL creates a new SQL run store with the given dialector
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (core.ResultStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&runRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{
		db: db,
	}, nil
}

// SaveResult stores a backtest run, assigning an ID when absent
func (s *SQLStorage) SaveResult(result *core.Result) error {
	if result.ID == "" {
		s.lastID++
		result.ID = fmt.Sprintf("%d", s.lastID)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	record := runRecord{
		ID:        result.ID,
		Symbol:    result.Symbol,
		Timeframe: result.Timeframe,
		CreatedAt: result.CreatedAt,
		Payload:   payload,
	}

	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	return nil
}

// Result retrieves a single run by ID
func (s *SQLStorage) Result(id string) (*core.Result, error) {
	var record runRecord
	if err := s.db.First(&record, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("result not found: %w", err)
	}

	return decodeRecord(record)
}

// Results retrieves stored runs matching all provided filters
func (s *SQLStorage) Results(filters ...core.ResultFilter) ([]*core.Result, error) {
	var records []runRecord
	if err := s.db.Order("created_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results := make([]*core.Result, 0, len(records))
	for _, record := range records {
		result, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return lo.Filter(results, func(result *core.Result, _ int) bool {
		for _, filter := range filters {
			if !filter(*result) {
				return false
			}
		}
		return true
	}), nil
}

func decodeRecord(record runRecord) (*core.Result, error) {
	var result core.Result
	if err := json.Unmarshal(record.Payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}
