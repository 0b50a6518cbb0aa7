package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dialect は接続先データベースの種類を表す。
type Dialect string

const (
	// DialectPostgres はPostgreSQL（lib/pq）。
	DialectPostgres Dialect = "postgres"
	// DialectSQLite はSQLite（modernc.org/sqlite）。
	DialectSQLite Dialect = "sqlite"
)

// Target はDATABASE_URLを解釈した接続情報。
type Target struct {
	Dialect Dialect
	// DSN はsql.Openに渡す接続文字列。
	DSN string
	// MigrateURL はgolang-migrateに渡すURL。
	MigrateURL string
	// Path はSQLiteのファイルパス。PostgreSQLの場合は空。
	Path string
}

// sqlitePragmas はSQLite接続ごとに適用するプラグマ。
// 外部キー制約はCASCADE削除に必須。
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// ParseURL はDATABASE_URLを解釈する。
// postgres:// と postgresql:// はPostgreSQL、sqlite: で始まるものはSQLiteファイルとして扱う。
func ParseURL(databaseURL string) (Target, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Target{
			Dialect:    DialectPostgres,
			DSN:        databaseURL,
			MigrateURL: databaseURL,
		}, nil

	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(databaseURL, "sqlite:")
		path = strings.TrimPrefix(path, "//")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			return Target{}, fmt.Errorf("empty sqlite path in database URL")
		}
		return Target{
			Dialect:    DialectSQLite,
			DSN:        path + "?" + sqlitePragmas,
			MigrateURL: "sqlite://" + path,
			Path:       path,
		}, nil
	}

	return Target{}, fmt.Errorf("unsupported database URL scheme: %s", MaskURL(databaseURL))
}

// ensureDir はSQLiteファイルの親ディレクトリを作成する。
func (t Target) ensureDir() error {
	if t.Dialect != DialectSQLite {
		return nil
	}
	dir := filepath.Dir(t.Path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Rebind は ? プレースホルダのクエリを方言に合わせて書き換える。
// PostgreSQLでは $1, $2, ... に置換し、SQLiteではそのまま返す。
// クエリ本文にリテラルの ? を含めないこと。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// MaskURL はデータベースURLの認証情報をマスクする。
func MaskURL(url string) string {
	if strings.HasPrefix(url, "sqlite:") {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
