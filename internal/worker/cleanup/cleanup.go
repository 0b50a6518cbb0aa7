// Package cleanup は不要データの定期削除ジョブを提供する。
// 期限切れのセッションと、どのエントリからも参照されなくなったタグを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/interne/internal/database"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at < ?`
	deleteOrphanTagsQuery      = `DELETE FROM tags WHERE id NOT IN (SELECT tag_id FROM entry_tags)`
)

// Result は1回の実行で削除した件数。
type Result struct {
	Sessions int64
	Tags     int64
}

// CleanupJob は期限切れセッションと孤立タグの削除ジョブ。
// 何度実行しても結果は変わらない。
type CleanupJob struct {
	db      Executor
	dialect database.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, dialect database.Dialect, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
	}
}

// Start はintervalごとにRunを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run は期限切れセッションを削除し、続けて孤立タグを削除する。
func (j *CleanupJob) Run(ctx context.Context) (*Result, error) {
	start := j.now()
	result := &Result{}

	// 1. 期限切れセッション
	sessions, err := j.exec(ctx, deleteExpiredSessionsQuery, start.UTC())
	if err != nil {
		return result, fmt.Errorf("期限切れセッションの削除に失敗しました: %w", err)
	}
	result.Sessions = sessions

	// 2. 孤立タグ
	tags, err := j.exec(ctx, deleteOrphanTagsQuery)
	if err != nil {
		return result, fmt.Errorf("孤立タグの削除に失敗しました: %w", err)
	}
	result.Tags = tags

	j.logger.Info("クリーンアップが完了しました",
		slog.Int64("deleted_sessions", result.Sessions),
		slog.Int64("deleted_tags", result.Tags),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return result, nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := j.db.ExecContext(ctx, j.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}
