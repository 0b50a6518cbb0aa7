package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/model"
)

// SQLTagRepo はdatabase/sqlを使用したタグ集計リポジトリ。
type SQLTagRepo struct {
	rebinder
	db *sql.DB
}

// NewSQLTagRepo はSQLTagRepoを生成する。
func NewSQLTagRepo(db *sql.DB, dialect database.Dialect) *SQLTagRepo {
	return &SQLTagRepo{rebinder: rebinder{dialect}, db: db}
}

// CountVisibleTo はユーザーが閲覧しうるエントリに付いたタグと件数を名前順で返す。
func (r *SQLTagRepo) CountVisibleTo(ctx context.Context, userID string) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT t.id, t.name, COUNT(*) AS cnt
		 FROM tags t
		 JOIN entry_tags et ON et.tag_id = t.id
		 JOIN entries e ON e.id = et.entry_id
		 WHERE `+visibleEntryPredicate+`
		 GROUP BY t.id, t.name
		 ORDER BY t.name`),
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		t := &model.Tag{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// compile-time interface check
var _ TagRepository = (*SQLTagRepo)(nil)
