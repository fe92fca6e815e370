package content

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillpress/internal/domain"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Test Post Title":            "test-post-title",
		"  Hello,   World!  ":        "hello-world",
		"Go 1.24 -- what's new?":     "go-124-whats-new",
		"tabs\tand\nnewlines":        "tabsandnewlines",
		"Hello\tWorld":               "helloworld",
		"a\nb c":                     "ab-c",
		"Ünïcödé only ñ":             "ncd-only",
		"---":                        "",
		"UPPER lower 123":            "upper-lower-123",
		"a - b":                      "a-b",
		"trailing punctuation!!! ":   "trailing-punctuation",
		"_under_scores_ and-hyphens": "underscores-andhyphens",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestSlugify_Shape(t *testing.T) {
	inputs := []string{
		"Test Post Title", "  --a--b--  ", "!!!x!!!", "multiple   spaces here",
		"MiXeD CaSe 42", "emoji 🚀 rocket", "a b", "end-", "-start",
	}
	for _, in := range inputs {
		s := Slugify(in)
		if s == "" {
			continue
		}
		assert.Regexp(t, slugShape, s, "input %q", in)
		assert.False(t, strings.Contains(s, "--"))
	}
}

func TestNextSlug(t *testing.T) {
	assert.Equal(t, "base", NextSlug("base", nil))
	assert.Equal(t, "base-1", NextSlug("base", []string{"base"}))
	assert.Equal(t, "base-2", NextSlug("base", []string{"base", "base-1", "base-3"}))
	// base 空出来了就用 base
	assert.Equal(t, "base", NextSlug("base", []string{"base-1"}))
}

type fakeSlugs []string

func (f fakeSlugs) SlugsWithPrefix(context.Context, string) ([]string, error) {
	return append([]string(nil), f...), nil
}

func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()

	s, err := UniqueSlug(ctx, fakeSlugs{"test-post-title"}, "Test Post Title", "post", "")
	require.NoError(t, err)
	assert.Equal(t, "test-post-title-1", s)

	// 自己当前的 slug 不算冲突
	s, err = UniqueSlug(ctx, fakeSlugs{"test-post-title"}, "Test Post Title", "post", "test-post-title")
	require.NoError(t, err)
	assert.Equal(t, "test-post-title", s)

	s, err = UniqueSlug(ctx, fakeSlugs{}, "???", "post", "")
	require.NoError(t, err)
	assert.Equal(t, "post", s)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "Title bold code...", Excerpt("# Title **bold** `code`", 200))

	long := strings.Repeat("word ", 100)
	ex := Excerpt(long, 200)
	assert.LessOrEqual(t, len([]rune(ex)), 203)
	assert.True(t, strings.HasSuffix(ex, "..."))
	assert.Equal(t, strings.TrimSpace(long)[:200]+"...", ex)
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime("", 200))
	assert.Equal(t, 1, ReadingTime(strings.Repeat("w ", 15), 200))
	assert.Equal(t, 2, ReadingTime(strings.Repeat("w ", 400), 200))
	assert.Equal(t, 3, ReadingTime(strings.Repeat("w ", 401), 200))
	assert.Equal(t, 1, ReadingTime("one\n\ttwo   three", 200))
}

func TestDeriver_Apply(t *testing.T) {
	d := NewDeriver(Options{})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	p := &domain.Post{Content: strings.Repeat("w ", 400), Status: domain.PostDraft}
	d.Apply(p)
	assert.Equal(t, 2, p.ReadingTime)
	assert.True(t, strings.HasSuffix(p.Excerpt, "..."))
	assert.Nil(t, p.PublishedAt)

	p.Status = domain.PostPublished
	d.Apply(p)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, fixed, *p.PublishedAt)

	// 已发布再次保存不覆盖
	d.now = func() time.Time { return fixed.Add(time.Hour) }
	d.Apply(p)
	assert.Equal(t, fixed, *p.PublishedAt)

	// 显式摘要不被内容修改覆盖
	p.Excerpt, p.ExcerptExplicit = "hand written", true
	p.Content = "changed"
	d.Apply(p)
	assert.Equal(t, "hand written", p.Excerpt)
	assert.Equal(t, 1, p.ReadingTime)
}
