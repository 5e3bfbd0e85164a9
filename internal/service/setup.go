package service

import (
	"chat-guard/internal/logger"
	"chat-guard/internal/storage"
)

var (
	moderationRepository *storage.ModerationRepository
)

// InitRepositories initializes the repositories if database is enabled
func InitRepositories() {
	if storage.DB != nil {
		moderationRepository = storage.NewModerationRepository(storage.DB)
		if err := moderationRepository.MigrateTable(); err != nil {
			logger.Warningf("Error migrating ModerationRecord table: %v", err)
		}
	}
}

// UseRepository replaces the audit repository, nil disables auditing
func UseRepository(repo *storage.ModerationRepository) {
	moderationRepository = repo
}
