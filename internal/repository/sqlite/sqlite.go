package sqlite

import (
	"log/slog"
	"time"

	"github.com/stormline/dispatch/internal/db"
	"github.com/stormline/dispatch/pkg/repository"
)

// SQLiteRepo implements the repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.KnowledgeStore = (*SQLiteRepo)(nil)
var _ repository.JobStore = (*SQLiteRepo)(nil)
var _ repository.ContractorRegistry = (*SQLiteRepo)(nil)
var _ repository.ConversationRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
