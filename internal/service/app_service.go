package service

import (
	"sync"

	"brighttalk-server/internal/repository"
)

type AppService struct {
	repos         *repository.Repositories
	settingsCache sync.Map
}

func NewAppService(repos *repository.Repositories) *AppService {
	return &AppService{repos: repos}
}
