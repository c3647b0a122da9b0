package service

import (
	"fmt"
	"strings"
	"time"

	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/state"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name        string
	Description string
	Category    string
	Deadline    *time.Time
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store      Dispatcher
	categories *CategoryService
}

func NewTaskService(store Dispatcher, categories *CategoryService) *TaskService {
	return &TaskService{store: store, categories: categories}
}

// CreateTask adds a task. A category given by name is created when missing.
func (s *TaskService) CreateTask(input TaskInput) (model.Task, error) {
	if strings.TrimSpace(input.Name) == "" {
		return model.Task{}, fmt.Errorf("%w: task name is required", state.ErrValidation)
	}

	var categoryID string
	if strings.TrimSpace(input.Category) != "" {
		category, err := s.categories.GetOrCreate(input.Category)
		if err != nil {
			return model.Task{}, err
		}
		categoryID = category.ID
	}

	out, err := s.store.Update(state.AddTask{Draft: state.TaskDraft{
		Name:        input.Name,
		Description: input.Description,
		CategoryID:  categoryID,
		Deadline:    input.Deadline,
	}})
	if err != nil {
		return model.Task{}, err
	}
	return out.User.Tasks[out.User.TaskIndex(out.CreatedID)], nil
}

// List returns all tasks in display order.
func (s *TaskService) List() []model.Task {
	return projection.OrderedTasks(s.store.Current())
}

// ListActive returns the tasks that are not done yet.
func (s *TaskService) ListActive() []model.Task {
	var active []model.Task
	for _, t := range s.store.Current().Tasks {
		if !t.Done {
			active = append(active, t)
		}
	}
	return active
}

// GetTask returns the task shown at 1-based position n.
func (s *TaskService) GetTask(n int) (model.Task, error) {
	task, ok := projection.TaskByPosition(s.store.Current(), n)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: task #%d", state.ErrNotFound, n)
	}
	return task, nil
}

// ToggleTask flips the done flag and returns the updated task.
func (s *TaskService) ToggleTask(taskID string) (model.Task, error) {
	out, err := s.store.Update(state.ToggleTaskDone{TaskID: taskID})
	if err != nil {
		return model.Task{}, err
	}
	return out.User.Tasks[out.User.TaskIndex(taskID)], nil
}

func (s *TaskService) DeleteTask(taskID string) error {
	_, err := s.store.Update(state.RemoveTask{TaskID: taskID})
	return err
}
