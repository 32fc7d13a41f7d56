// Package storage persists backtest runs so a replay can be reopened without
// re-fetching the series from the backtest service.
package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/tidwall/buntdb"
)

// BuntStorage implements the core.ResultStorage interface using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// FromMemory creates an in-memory run store
func FromMemory() (core.ResultStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based run store
func FromFile(file string) (core.ResultStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string) (core.ResultStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex("created_index", "*", buntdb.IndexJSON("created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// nextID generates a unique ID for runs saved without one
func (b *BuntStorage) nextID() string {
	return strconv.FormatInt(atomic.AddInt64(&b.lastID, 1), 10)
}

// SaveResult stores a backtest run, assigning an ID when absent
func (b *BuntStorage) SaveResult(result *core.Result) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if result.ID == "" {
			result.ID = b.nextID()
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = time.Now()
		}

		content, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}

		_, _, err = tx.Set(result.ID, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}

		return nil
	})
}

// Result retrieves a single run by ID
func (b *BuntStorage) Result(id string) (*core.Result, error) {
	var result core.Result

	err := b.db.View(func(tx *buntdb.Tx) error {
		content, err := tx.Get(id)
		if err != nil {
			return fmt.Errorf("result not found: %w", err)
		}
		return json.Unmarshal([]byte(content), &result)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Results retrieves stored runs matching all provided filters
func (b *BuntStorage) Results(filters ...core.ResultFilter) ([]*core.Result, error) {
	results := make([]*core.Result, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.Ascend("created_index", func(_, value string) bool {
			var result core.Result
			if innerErr = json.Unmarshal([]byte(value), &result); innerErr != nil {
				return false
			}

			for _, filter := range filters {
				if !filter(result) {
					return true
				}
			}

			results = append(results, &result)
			return true
		})
		if err != nil {
			return err
		}
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	return results, nil
}
