package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"todo-app/internal/model"
)

type categoryRecord struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"index"`
	Position int
	Name     string
	Color    string
}

func (categoryRecord) TableName() string { return "categories" }

// CategoryRepository manages task categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) withTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID string) ([]model.Category, error) {
	var records []categoryRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]model.Category, 0, len(records))
	for _, rec := range records {
		categories = append(categories, model.Category{ID: rec.ID, Name: rec.Name, Color: rec.Color})
	}
	return categories, nil
}

func (r *CategoryRepository) ReplaceForUser(ctx context.Context, userID string, categories []model.Category) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ?", userID).Delete(&categoryRecord{}).Error; err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	if len(categories) == 0 {
		return nil
	}

	records := make([]categoryRecord, 0, len(categories))
	for i, c := range categories {
		records = append(records, categoryRecord{
			ID:       c.ID,
			UserID:   userID,
			Position: i,
			Name:     c.Name,
			Color:    c.Color,
		})
	}
	if err := db.Create(&records).Error; err != nil {
		return fmt.Errorf("create categories: %w", err)
	}
	return nil
}
