package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/interne/internal/database"
)

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// visibleEntryPredicate はエントリ e がユーザーに見えうるかを表すSQL条件。
// プレースホルダはすべて同じユーザーIDで埋める。
const visibleEntryPredicate = `(e.owner_id = ?
	OR e.collection_id IN (SELECT c.id FROM collections c WHERE c.owner_id = ?)
	OR e.collection_id IN (SELECT cm.collection_id FROM collection_members cm WHERE cm.user_id = ?))`

// placeholders は "?, ?, ?" をn個分返す。
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isValidID はIDがUUID形式かを返す。PostgreSQLのuuid型に不正な文字列を渡さないために使う。
func isValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// utc は書き込み前に時刻をUTCへ揃える。SQLiteでは文字列比較になるため必須。
func utc(t time.Time) time.Time {
	return t.UTC()
}

// nullableTime は*time.TimeをUTCのNULL許容値に変換する。
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullableString は*stringをNULL許容値に変換する。
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// withTx はトランザクション内でfnを実行し、エラーがなければコミットする。
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rebinder は方言に応じたクエリ書き換えを提供する埋め込み用の型。
type rebinder struct {
	dialect database.Dialect
}

func (r rebinder) q(query string) string {
	return r.dialect.Rebind(query)
}
