package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-app/internal/model"
)

type userRecord struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	ProfilePicture string
	Settings       model.AppSettings `gorm:"serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRecord) TableName() string { return "users" }

// UserRepository stores whole user snapshots: the user row plus its tasks and categories.
type UserRepository struct {
	db         *gorm.DB
	tasks      *TaskRepository
	categories *CategoryRepository
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db:         db,
		tasks:      NewTaskRepository(db),
		categories: NewCategoryRepository(db),
	}
}

// Load returns the stored user. gorm.ErrRecordNotFound means nothing was saved yet.
func (r *UserRepository) Load(ctx context.Context) (*model.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC").First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	tasks, err := r.tasks.ListByUser(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	categories, err := r.categories.ListByUser(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:             rec.ID,
		Name:           rec.Name,
		ProfilePicture: rec.ProfilePicture,
		CreatedAt:      rec.CreatedAt,
		Tasks:          tasks,
		Categories:     categories,
		Settings:       []model.AppSettings{rec.Settings},
	}
	return user, nil
}

// Save replaces the stored snapshot for user in a single transaction.
func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("save user: missing id")
	}

	rec := userRecord{
		ID:             user.ID,
		Name:           user.Name,
		ProfilePicture: user.ProfilePicture,
		Settings:       user.AppSettings(),
		CreatedAt:      user.CreatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		if err := r.categories.withTx(tx).ReplaceForUser(ctx, user.ID, user.Categories); err != nil {
			return err
		}
		return r.tasks.withTx(tx).ReplaceForUser(ctx, user.ID, user.Tasks)
	})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
