package service

import (
	"todo-app/internal/model"
	"todo-app/internal/state"
)

// Dispatcher is the part of the state store the services need.
type Dispatcher interface {
	Current() *model.User
	Update(intent state.Intent) (state.Outcome, error)
}
