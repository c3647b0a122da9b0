package service

import (
	"fmt"

	"todo-app/internal/model"
	"todo-app/internal/projection"
	"todo-app/internal/state"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	store Dispatcher
}

func NewCategoryService(store Dispatcher) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) List() []model.Category {
	return s.store.Current().Categories
}

func (s *CategoryService) Create(name, color string) (model.Category, error) {
	out, err := s.store.Update(state.AddCategory{Name: name, Color: color})
	if err != nil {
		return model.Category{}, err
	}
	return out.User.Categories[out.User.CategoryIndex(out.CreatedID)], nil
}

// GetOrCreate returns the category called name, creating it with the default color if needed.
func (s *CategoryService) GetOrCreate(name string) (model.Category, error) {
	if c, ok := projection.CategoryByName(s.store.Current(), name); ok {
		return c, nil
	}
	return s.Create(name, "")
}

// DeleteByName removes the category called name. Tasks keep pointing at it.
func (s *CategoryService) DeleteByName(name string) error {
	c, ok := projection.CategoryByName(s.store.Current(), name)
	if !ok {
		return fmt.Errorf("%w: category %q", state.ErrNotFound, name)
	}
	_, err := s.store.Update(state.RemoveCategory{CategoryID: c.ID})
	return err
}
