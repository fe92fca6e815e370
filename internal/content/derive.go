// Package content 计算 slug、摘要、阅读时长等写入时派生字段。
package content

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"quillpress/internal/domain"
)

const (
	DefaultExcerptLength  = 200
	DefaultWordsPerMinute = 200
	excerptSuffix         = "..."
)

var markdownMarkers = regexp.MustCompile("[#*_`]")

type Options struct {
	ExcerptLength  int
	WordsPerMinute int
}

func (o Options) withDefaults() Options {
	if o.ExcerptLength <= 0 {
		o.ExcerptLength = DefaultExcerptLength
	}
	if o.WordsPerMinute <= 0 {
		o.WordsPerMinute = DefaultWordsPerMinute
	}
	return o
}

// Slugify 小写，去掉 [a-z0-9 ] 以外字符，连续空白变单个 '-'，去首尾 '-'
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r == ' ', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	// 只有空格算分隔符；制表符、换行与其它字符一样被剔除
	return strings.Trim(strings.Join(strings.Fields(b.String()), "-"), "-")
}

// NextSlug base 未占用直接返回，否则取最小的未占用 base-N（N 从 1 开始）
func NextSlug(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		cand := base + "-" + strconv.Itoa(n)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}

type SlugLister interface {
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
}

// UniqueSlug 基于存储里已有的同族 slug 求最小可用值。
// own 为实体当前 slug（更新时），不算作冲突。结果仍须靠存储唯一约束兜底。
func UniqueSlug(ctx context.Context, store SlugLister, title, fallback, own string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallback
	}
	taken, err := store.SlugsWithPrefix(ctx, base)
	if err != nil {
		return "", err
	}
	if own != "" {
		kept := taken[:0]
		for _, s := range taken {
			if s != own {
				kept = append(kept, s)
			}
		}
		taken = kept
	}
	return NextSlug(base, taken), nil
}

// Excerpt 去掉 markdown 标记后取前 n 个字符并追加 "..."
func Excerpt(body string, n int) string {
	if n <= 0 {
		n = DefaultExcerptLength
	}
	plain := strings.TrimSpace(markdownMarkers.ReplaceAllString(body, ""))
	runes := []rune(plain)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + excerptSuffix
}

func WordCount(body string) int { return len(strings.Fields(body)) }

// ReadingTime ceil(words/wpm)，至少 1 分钟
func ReadingTime(body string, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	minutes := int(math.Ceil(float64(WordCount(body)) / float64(wpm)))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Deriver 保存文章前刷新派生字段（slug 除外，slug 需要查存储）
type Deriver struct {
	opts Options
	now  func() time.Time
}

func NewDeriver(opts Options) *Deriver {
	return &Deriver{opts: opts.withDefaults(), now: time.Now}
}

func (d *Deriver) Apply(p *domain.Post) {
	p.ReadingTime = ReadingTime(p.Content, d.opts.WordsPerMinute)
	if !p.ExcerptExplicit {
		p.Excerpt = Excerpt(p.Content, d.opts.ExcerptLength)
	}
	// 发布时间只在首次进入 published 时写一次
	if p.Status == domain.PostPublished && p.PublishedAt == nil {
		t := d.now().UTC()
		p.PublishedAt = &t
	}
}
