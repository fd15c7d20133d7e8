package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/catdetector/companion/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps settings in a SQL database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection. Init must be called before use.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Init migrates the companion tables.
func (s *GormStore) Init() error {
	if s.db == nil {
		return errors.New("settings database not connected")
	}
	if err := s.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

// DB returns the underlying connection.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Close releases the connection.
func (s *GormStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Get(key string) ([]byte, bool, error) {
	var row model.Setting
	err := s.db.Where("name = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(row.Value), true, nil
}

func (s *GormStore) Put(key string, value []byte) error {
	row := model.Setting{Name: key, Value: datatypes.JSON(value), UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
