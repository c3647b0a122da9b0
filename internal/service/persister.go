package service

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"todo-app/internal/model"
	"todo-app/internal/repository"
)

// SnapshotPersister adapts the user repository to the store's persistence hooks.
type SnapshotPersister struct {
	repo   *repository.UserRepository
	logger *log.Logger
}

func NewSnapshotPersister(repo *repository.UserRepository, logger *log.Logger) *SnapshotPersister {
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotPersister{repo: repo, logger: logger}
}

// Load reports false when nothing is stored or the stored data cannot be read.
func (p *SnapshotPersister) Load(ctx context.Context) (*model.User, bool) {
	user, err := p.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Printf("load user: %v", err)
		}
		return nil, false
	}
	return user, true
}

func (p *SnapshotPersister) Save(ctx context.Context, user *model.User) error {
	return p.repo.Save(ctx, user)
}
