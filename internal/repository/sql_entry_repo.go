package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/interne/internal/availability"
	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/model"
)

// SQLEntryRepo はdatabase/sqlを使用したエントリリポジトリ。
// visit_countは保存せず、訪問行の件数を都度集計する。
type SQLEntryRepo struct {
	rebinder
	db *sql.DB
	// now は保存値が解釈できないdismissed_atの代替時刻を返す。
	now func() time.Time
}

// NewSQLEntryRepo はSQLEntryRepoを生成する。
func NewSQLEntryRepo(db *sql.DB, dialect database.Dialect) *SQLEntryRepo {
	return &SQLEntryRepo{rebinder: rebinder{dialect}, db: db, now: time.Now}
}

const entrySelect = `SELECT e.id, e.owner_id, e.collection_id, e.url, e.title, e.description,
	e.duration, e.interval_unit, e.dismissed_at, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM visits v WHERE v.entry_id = e.id) AS visit_count
	FROM entries e`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry はentrySelectの1行をmodel.Entryに変換する。
// dismissed_atは文字列として読み、解釈できなければ現在時刻として扱う。
func (r *SQLEntryRepo) scanEntry(row rowScanner) (*model.Entry, error) {
	var (
		e            model.Entry
		collectionID sql.NullString
		interval     string
		dismissedAt  sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.OwnerID, &collectionID, &e.URL, &e.Title, &e.Description,
		&e.Duration, &interval, &dismissedAt, &e.CreatedAt, &e.UpdatedAt,
		&e.VisitCount,
	)
	if err != nil {
		return nil, err
	}

	if collectionID.Valid {
		id := collectionID.String
		e.CollectionID = &id
	}

	iv, err := model.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("entry %s has invalid interval: %w", e.ID, err)
	}
	e.Interval = iv

	if dismissedAt.Valid {
		e.DismissedAt = availability.ResolveDismissedAt(dismissedAt.String, r.now())
	}

	return &e, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *SQLEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	if !isValidID(id) {
		return nil, nil
	}
	e, err := r.scanEntry(r.db.QueryRowContext(ctx, r.q(entrySelect+` WHERE e.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}

	if err := r.loadTags(ctx, []*model.Entry{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListVisibleTo はユーザーが閲覧しうるエントリをcreated_at降順で返す。
func (r *SQLEntryRepo) ListVisibleTo(ctx context.Context, userID string) ([]*model.Entry, error) {
	return r.list(ctx,
		entrySelect+` WHERE `+visibleEntryPredicate+` ORDER BY e.created_at DESC, e.id`,
		userID, userID, userID,
	)
}

// ListByOwner はユーザーが作成したエントリをcreated_at昇順で返す。
func (r *SQLEntryRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Entry, error) {
	return r.list(ctx, entrySelect+` WHERE e.owner_id = ? ORDER BY e.created_at, e.id`, ownerID)
}

func (r *SQLEntryRepo) list(ctx context.Context, query string, args ...any) ([]*model.Entry, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	var entries []*model.Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	// タグ読み込みの前に閉じる（SQLiteは接続1本）
	rows.Close()

	if err := r.loadTags(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// loadTags はエントリ群のタグをまとめて読み込む。
func (r *SQLEntryRepo) loadTags(ctx context.Context, entries []*model.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	byID := make(map[string]*model.Entry, len(entries))
	args := make([]any, 0, len(entries))
	for _, e := range entries {
		e.Tags = []string{}
		byID[e.ID] = e
		args = append(args, e.ID)
	}

	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT et.entry_id, t.name
		 FROM entry_tags et
		 JOIN tags t ON t.id = et.tag_id
		 WHERE et.entry_id IN (`+placeholders(len(args))+`)
		 ORDER BY t.name`), args...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryID, name string
		if err := rows.Scan(&entryID, &name); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if e, ok := byID[entryID]; ok {
			e.Tags = append(e.Tags, name)
		}
	}
	return rows.Err()
}

// ExistsByOwnerAndURL は同じURLのエントリを既に作成済みかを返す。
func (r *SQLEntryRepo) ExistsByOwnerAndURL(ctx context.Context, ownerID, url string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.q(`SELECT COUNT(*) FROM entries WHERE owner_id = ? AND url = ?`),
		ownerID, url,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check entry existence: %w", err)
	}
	return n > 0, nil
}

// Create はエントリとタグを同一トランザクションで作成する。
func (r *SQLEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	return r.CreateWithVisits(ctx, entry, nil)
}

// CreateWithVisits はエントリ、タグ、既存の訪問履歴を同一トランザクションで作成する。
func (r *SQLEntryRepo) CreateWithVisits(ctx context.Context, entry *model.Entry, visits []*model.Visit) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			r.q(`INSERT INTO entries
			 (id, owner_id, collection_id, url, title, description, duration, interval_unit, dismissed_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			entry.ID, entry.OwnerID, nullableString(entry.CollectionID), entry.URL, entry.Title, entry.Description,
			entry.Duration, string(entry.Interval), nullableTime(entry.DismissedAt), utc(entry.CreatedAt), utc(entry.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}

		if err := r.replaceTags(ctx, tx, entry.ID, entry.Tags); err != nil {
			return err
		}

		for _, v := range visits {
			if err := r.insertVisit(ctx, tx, v); err != nil {
				return err
			}
		}
		entry.VisitCount = len(visits)
		return nil
	})
}

// Update はエントリの内容とタグを更新する。dismissed_atは変更しない。
func (r *SQLEntryRepo) Update(ctx context.Context, entry *model.Entry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			r.q(`UPDATE entries
			 SET collection_id = ?, url = ?, title = ?, description = ?, duration = ?, interval_unit = ?, updated_at = ?
			 WHERE id = ?`),
			nullableString(entry.CollectionID), entry.URL, entry.Title, entry.Description,
			entry.Duration, string(entry.Interval), utc(entry.UpdatedAt), entry.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("entry not found: %s", entry.ID)
		}

		return r.replaceTags(ctx, tx, entry.ID, entry.Tags)
	})
}

// replaceTags はエントリのタグ紐付けを置き換える。未登録のタグは作成する。
func (r *SQLEntryRepo) replaceTags(ctx context.Context, tx *sql.Tx, entryID string, names []string) error {
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM entry_tags WHERE entry_id = ?`), entryID); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}

	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			r.q(`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`),
			uuid.NewString(), name,
		); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}

		var tagID string
		if err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM tags WHERE name = ?`), name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to find tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			r.q(`INSERT INTO entry_tags (entry_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`),
			entryID, tagID,
		); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

// Delete は指定IDのエントリを削除する。
func (r *SQLEntryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.q(`DELETE FROM entries WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	return nil
}

// RecordVisit は訪問行の追加とdismissed_atの更新を同一トランザクションで行う。
// どちらかが失敗した場合は両方ともロールバックされる。
func (r *SQLEntryRepo) RecordVisit(ctx context.Context, visit *model.Visit) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. 訪問行の追加
		if err := r.insertVisit(ctx, tx, visit); err != nil {
			return err
		}

		// 2. クールダウンの起点を更新
		result, err := tx.ExecContext(ctx,
			r.q(`UPDATE entries SET dismissed_at = ? WHERE id = ?`),
			utc(visit.VisitedAt), visit.EntryID,
		)
		if err != nil {
			return fmt.Errorf("failed to update dismissed_at: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("entry not found: %s", visit.EntryID)
		}
		return nil
	})
}

func (r *SQLEntryRepo) insertVisit(ctx context.Context, q queryer, v *model.Visit) error {
	_, err := q.ExecContext(ctx,
		r.q(`INSERT INTO visits (id, entry_id, user_id, visited_at) VALUES (?, ?, ?, ?)`),
		v.ID, v.EntryID, v.UserID, utc(v.VisitedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}
	return nil
}

// ListVisits はエントリの訪問履歴をvisited_at降順で返す。
func (r *SQLEntryRepo) ListVisits(ctx context.Context, entryID string) ([]*model.Visit, error) {
	if !isValidID(entryID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT id, entry_id, user_id, visited_at FROM visits WHERE entry_id = ? ORDER BY visited_at DESC, id`),
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []*model.Visit
	for rows.Next() {
		v := &model.Visit{}
		if err := rows.Scan(&v.ID, &v.EntryID, &v.UserID, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// compile-time interface check
var _ EntryRepository = (*SQLEntryRepo)(nil)
