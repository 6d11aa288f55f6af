package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/microcosm-cc/bluemonday"
)

const (
	MetaDescMaxRunes = 160
	maxSlugAttempts  = 1000
)

var (
	stripPolicy     *bluemonday.Policy
	stripPolicyOnce sync.Once

	// Escaped angle brackets come back from UnescapeString as live markers.
	angleBrackets = strings.NewReplacer("<", "", ">", "")
)

// BlogFields are the inputs and outputs of DeriveSlugAndMeta.
type BlogFields struct {
	Title     string
	Content   string
	Slug      string
	MetaTitle string
	MetaDesc  string
}

// SlugLookup reports whether slug is already used by another blog.
type SlugLookup func(ctx context.Context, slug string) (bool, error)

// DeriveSlugAndMeta fills in the fields computed on every save. The slug is
// only regenerated when the title changed or no slug exists yet; the first
// free candidate among base, base-1, base-2, ... wins.
//
// The lookup and the later write are not atomic. A concurrent writer can
// still claim the slug, in which case the store reports a duplicate key.
func DeriveSlugAndMeta(ctx context.Context, candidate BlogFields, titleChanged bool, lookup SlugLookup) (BlogFields, error) {
	out := candidate

	if titleChanged || strings.TrimSpace(out.Slug) == "" {
		slug, err := nextFreeSlug(ctx, Slugify(out.Title), lookup)
		if err != nil {
			return BlogFields{}, err
		}
		out.Slug = slug
	}

	if strings.TrimSpace(out.MetaTitle) == "" {
		out.MetaTitle = out.Title
	}
	if strings.TrimSpace(out.MetaDesc) == "" {
		out.MetaDesc = MetaDescription(out.Content)
		if out.MetaDesc == "" {
			out.MetaDesc = truncateRunes(strings.TrimSpace(out.Title), MetaDescMaxRunes)
		}
	}

	return out, nil
}

func nextFreeSlug(ctx context.Context, base string, lookup SlugLookup) (string, error) {
	slug := base
	for i := 1; i <= maxSlugAttempts; i++ {
		taken, err := lookup(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", errs.NewInternalError(fmt.Sprintf("no free slug for %q", base))
}

// MetaDescription strips markup from content, collapses whitespace and cuts
// the result to MetaDescMaxRunes. The result never contains < or >.
func MetaDescription(content string) string {
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})

	text := angleBrackets.Replace(html.UnescapeString(stripPolicy.Sanitize(content)))
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(truncateRunes(text, MetaDescMaxRunes))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
