package service

import (
	"context"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/google/uuid"
)

func newID() string {
	return uuid.New().String()
}

// ensureID fills a blank id with a fresh uuid.
func ensureID(id string) string {
	if strings.TrimSpace(id) == "" {
		return newID()
	}
	return id
}

// requireLiveProject loads an active project.
func requireLiveProject(ctx context.Context, projects repository.ProjectRepo, id string) (*domain.Project, error) {
	p, err := projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.NotFoundErr("project", id)
	}
	return p, nil
}
