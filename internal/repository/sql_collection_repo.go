package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/model"
)

// SQLCollectionRepo はdatabase/sqlを使用したコレクションリポジトリ。
type SQLCollectionRepo struct {
	rebinder
	db *sql.DB
}

// NewSQLCollectionRepo はSQLCollectionRepoを生成する。
func NewSQLCollectionRepo(db *sql.DB, dialect database.Dialect) *SQLCollectionRepo {
	return &SQLCollectionRepo{rebinder: rebinder{dialect}, db: db}
}

// member_countはオーナーを含めるため+1する。
const collectionSelect = `SELECT c.id, c.owner_id, c.name, c.invite_code, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM collection_members m WHERE m.collection_id = c.id) + 1 AS member_count
	FROM collections c`

func scanCollection(row rowScanner) (*model.Collection, error) {
	c := &model.Collection{}
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.InviteCode, &c.CreatedAt, &c.UpdatedAt, &c.MemberCount)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
func (r *SQLCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	if !isValidID(id) {
		return nil, nil
	}
	c, err := scanCollection(r.db.QueryRowContext(ctx, r.q(collectionSelect+` WHERE c.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	return c, nil
}

// FindByInviteCode は招待コードでコレクションを検索する。見つからない場合はnilを返す。
func (r *SQLCollectionRepo) FindByInviteCode(ctx context.Context, code string) (*model.Collection, error) {
	c, err := scanCollection(r.db.QueryRowContext(ctx, r.q(collectionSelect+` WHERE c.invite_code = ?`), code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection by invite code: %w", err)
	}
	return c, nil
}

// ListForUser はユーザーがオーナーまたはメンバーのコレクションを名前順で返す。
func (r *SQLCollectionRepo) ListForUser(ctx context.Context, userID string) ([]*model.Collection, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(collectionSelect+`
		 WHERE c.owner_id = ?
		    OR c.id IN (SELECT collection_id FROM collection_members WHERE user_id = ?)
		 ORDER BY c.name, c.id`),
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*model.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// CollectionIDsForUser はユーザーが所属するコレクションID（オーナー分を含む）を返す。
func (r *SQLCollectionRepo) CollectionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT id FROM collections WHERE owner_id = ?
		 UNION
		 SELECT collection_id FROM collection_members WHERE user_id = ?`),
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan collection id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create はコレクションを作成する。
func (r *SQLCollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO collections (id, owner_id, name, invite_code, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.OwnerID, c.Name, c.InviteCode, utc(c.CreatedAt), utc(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	c.MemberCount = 1
	return nil
}

// Update はコレクション名と招待コードを更新する。
func (r *SQLCollectionRepo) Update(ctx context.Context, c *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`UPDATE collections SET name = ?, invite_code = ?, updated_at = ? WHERE id = ?`),
		c.Name, c.InviteCode, utc(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	return nil
}

// Delete はコレクションを削除する。
func (r *SQLCollectionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM collections WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// AddMember はメンバーを追加する。既に参加済みの場合は何もしない。
func (r *SQLCollectionRepo) AddMember(ctx context.Context, m *model.Membership) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO collection_members (collection_id, user_id, joined_at) VALUES (?, ?, ?)
		 ON CONFLICT (collection_id, user_id) DO NOTHING`),
		m.CollectionID, m.UserID, utc(m.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember はメンバーを削除する。削除した場合にtrueを返す。
func (r *SQLCollectionRepo) RemoveMember(ctx context.Context, collectionID, userID string) (bool, error) {
	if !isValidID(userID) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		r.q(`DELETE FROM collection_members WHERE collection_id = ? AND user_id = ?`),
		collectionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// ListMembers はメンバー（オーナーを除く）を参加日時順で返す。
func (r *SQLCollectionRepo) ListMembers(ctx context.Context, collectionID string) ([]*model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q(`SELECT m.collection_id, m.user_id, u.name, m.joined_at
		 FROM collection_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.collection_id = ?
		 ORDER BY m.joined_at, m.user_id`),
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*model.Membership
	for rows.Next() {
		m := &model.Membership{}
		if err := rows.Scan(&m.CollectionID, &m.UserID, &m.UserName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// compile-time interface check
var _ CollectionRepository = (*SQLCollectionRepo)(nil)
