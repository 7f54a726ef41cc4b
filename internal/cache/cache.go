// Package cache records compile runs in an embedded database, so repeated
// compiles of an unchanged script can be reported cheaply. Recording a run
// does not make a later compile skip any work.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one recorded compilation.
type Run struct {
	ID         uint   `gorm:"primaryKey"`
	ScriptSHA  string `gorm:"type:varchar(64);index"`
	Flags      string `gorm:"type:varchar(128)"`
	BlobCount  int
	ErrorCount int
	Variations datatypes.JSON
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	Blobs []BlobRef `gorm:"foreignKey:RunID"`
}

// BlobRef is one blob emitted by a run.
type BlobRef struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  uint   `gorm:"index"`
	BlobID string `gorm:"type:varchar(32)"`
	Size   int
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the cache database at path, migrating the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create %s: %w", dir, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}, &BlobRef{}); err != nil {
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordRun persists one compile outcome.
func (s *Store) RecordRun(scriptSHA, flags string, blobs map[string]int, errorCount int, variations []map[string]string) error {
	run := Run{
		ScriptSHA:  scriptSHA,
		Flags:      flags,
		BlobCount:  len(blobs),
		ErrorCount: errorCount,
	}
	if variations != nil {
		data, err := json.Marshal(variations)
		if err != nil {
			return fmt.Errorf("cache: marshal variations: %w", err)
		}
		run.Variations = datatypes.JSON(data)
	}
	for id, size := range blobs {
		run.Blobs = append(run.Blobs, BlobRef{BlobID: id, Size: size})
	}
	if err := s.db.Create(&run).Error; err != nil {
		return fmt.Errorf("cache: record run: %w", err)
	}
	return nil
}

// LastRun returns the newest run recorded for the script checksum, or nil.
func (s *Store) LastRun(scriptSHA string) (*Run, error) {
	var run Run
	err := s.db.Preload("Blobs").
		Where("script_sha = ?", scriptSHA).
		Order("id desc").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: last run: %w", err)
	}
	return &run, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
