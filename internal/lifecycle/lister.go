package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// Page is one response of a paginated list call. An empty NextToken marks
// the last page.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// PageFetcher retrieves the page addressed by token. The first call
// receives an empty token.
type PageFetcher[T any] func(ctx context.Context, token string) (Page[T], error)

// List drives fetch until the continuation token is exhausted and returns
// every item in the order the pages arrived. Duplicates are kept.
//
// A fetch error matching ErrNotFound yields an empty result: listing the
// children of a missing parent means there are no children.
func List[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	items := []T{}
	var token string

	for {
		page, err := fetch(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return []T{}, nil
			}
			return nil, fmt.Errorf("list page: %w", err)
		}

		items = append(items, page.Items...)

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	return items, nil
}
