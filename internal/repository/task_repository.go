package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"todo-app/internal/model"
)

type taskRecord struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	Position    int
	Name        string
	Description string
	Done        bool
	CategoryID  string `gorm:"index"`
	Deadline    *time.Time
	DoneAt      *time.Time
	CreatedAt   time.Time
}

func (taskRecord) TableName() string { return "tasks" }

// TaskRepository handles the ordered task rows of a user.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) withTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	var records []taskRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, model.Task{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			Done:        rec.Done,
			CategoryID:  rec.CategoryID,
			Deadline:    rec.Deadline,
			CreatedAt:   rec.CreatedAt,
			DoneAt:      rec.DoneAt,
		})
	}
	return tasks, nil
}

// ReplaceForUser deletes the user's tasks and writes tasks in their current order.
func (r *TaskRepository) ReplaceForUser(ctx context.Context, userID string, tasks []model.Task) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ?", userID).Delete(&taskRecord{}).Error; err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	records := make([]taskRecord, 0, len(tasks))
	for i, t := range tasks {
		records = append(records, taskRecord{
			ID:          t.ID,
			UserID:      userID,
			Position:    i,
			Name:        t.Name,
			Description: t.Description,
			Done:        t.Done,
			CategoryID:  t.CategoryID,
			Deadline:    t.Deadline,
			DoneAt:      t.DoneAt,
			CreatedAt:   t.CreatedAt,
		})
	}
	if err := db.CreateInBatches(records, 100).Error; err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}
	return nil
}
