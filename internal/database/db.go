package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open はDATABASE_URLに応じたドライバでデータベース接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	if err := target.ensureDir(); err != nil {
		return nil, "", fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(string(target.Dialect), target.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは書き込みが直列化されるため接続を1本に絞り、SQLITE_BUSYを避ける。
	// トランザクション中は同じ*sql.Txだけを使い、行を開いたまま別クエリを発行しないこと。
	if target.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, target.Dialect, nil
}
