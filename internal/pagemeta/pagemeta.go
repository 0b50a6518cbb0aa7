// Package pagemeta はWebページのタイトルと説明文を取得する。
package pagemeta

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hitoshi/interne/internal/metrics"
	"github.com/hitoshi/interne/internal/security"
	"golang.org/x/net/html"
)

// Getter はSSRF防止付きでURLを取得するインターフェース。
// security.URLGuardが実装する。
type Getter interface {
	Get(ctx context.Context, rawURL, accept string) ([]byte, error)
}

// Meta はページから抽出したメタ情報。
type Meta struct {
	Title       string
	Description string
}

// Fetcher はページを取得してMetaを抽出する。
type Fetcher struct {
	getter  Getter
	metrics metrics.MetricsCollector
}

// NewFetcher はFetcherを生成する。mcがnilの場合はメトリクスを記録しない。
func NewFetcher(getter Getter, mc metrics.MetricsCollector) *Fetcher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Fetcher{getter: getter, metrics: mc}
}

// Fetch はURLのページを取得し、タイトルと説明文を返す。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Meta, error) {
	start := time.Now()
	body, err := f.getter.Get(ctx, rawURL, "text/html,application/xhtml+xml")
	f.metrics.RecordFetchLatency(time.Since(start))
	if err != nil {
		f.metrics.RecordFetchFailure(failureReason(err))
		return nil, err
	}
	return Parse(body), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, security.ErrBlocked):
		return "blocked"
	case errors.Is(err, security.ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

// Parse はHTMLのhead要素からタイトルと説明文を抽出する。
// og:title / og:description を優先し、なければ <title> と meta description を使う。
func Parse(body []byte) *Meta {
	var (
		title, ogTitle string
		desc, ogDesc   string
		inTitle        bool
		titleBuf       strings.Builder
	)

	z := html.NewTokenizer(bytes.NewReader(body))
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			break loop

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				break loop
			case "title":
				if title == "" {
					inTitle = true
				}
			case "meta":
				if !hasAttr {
					continue
				}
				key, content := metaAttrs(z)
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDesc = content
				case "description":
					desc = content
				}
			}

		case html.TextToken:
			if inTitle {
				titleBuf.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				if inTitle {
					title = titleBuf.String()
					inTitle = false
				}
			case "head":
				break loop
			}
		}
	}

	return &Meta{
		Title:       clean(firstNonEmpty(ogTitle, title)),
		Description: clean(firstNonEmpty(ogDesc, desc)),
	}
}

// metaAttrs はmeta要素の name/property と content を返す。キーは小文字化する。
func metaAttrs(z *html.Tokenizer) (key, content string) {
	for {
		k, v, more := z.TagAttr()
		switch strings.ToLower(string(k)) {
		case "name", "property":
			if key == "" {
				key = strings.ToLower(string(v))
			}
		case "content":
			content = string(v)
		}
		if !more {
			return key, content
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
