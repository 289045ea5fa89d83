package repository

import (
	"github.com/google/wire"

	"chatdesk/chat-api/internal/infrastructure/database/repository/chatrepo"
	"chatdesk/chat-api/internal/infrastructure/database/repository/usagerepo"
)

var RepositoryProvider = wire.NewSet(
	chatrepo.NewChatGormRepository,
	usagerepo.NewUsageGormRepository,
)
