package repositorycache

import (
	"context"
	"slices"
)

type tagsKey struct{}

// WithCacheTags returns a context whose listing reads are additionally tagged
// with tags, so invalidating any of them also evicts those listings.
func WithCacheTags(ctx context.Context, tags ...string) context.Context {
	current := cacheTagsFromContext(ctx)
	merged := mergeTags(current, tags)
	if len(merged) == len(current) {
		return ctx
	}
	return context.WithValue(ctx, tagsKey{}, merged)
}

func cacheTagsFromContext(ctx context.Context) []string {
	tags, _ := ctx.Value(tagsKey{}).([]string)
	return slices.Clone(tags)
}

// mergeTags appends the non-empty values of extra missing from base.
// base is assumed to be free of duplicates and is never modified.
func mergeTags(base, extra []string) []string {
	out := slices.Clone(base)
	for _, tag := range extra {
		if tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}
