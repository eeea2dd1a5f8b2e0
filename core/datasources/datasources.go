package datasources

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/internal/subscription"
)

// Datasource is an interface for indexer data sources.
//
//   - from: height to start fetching, if -1, it will start from height 0
//   - to: height to stop fetching, if -1, it will fetch until the latest block
type Datasource[T any] interface {
	Name() string
	Fetch(ctx context.Context, from, to int64) ([]T, error)
	// FetchAsync sends batches in ascending height order. The subscription is done after the last batch was delivered.
	FetchAsync(ctx context.Context, from, to int64, ch chan<- []T) (*subscription.ClientSubscription[[]T], error)
}

// fetch collects every batch FetchAsync delivers.
func fetch[T any](ctx context.Context, d Datasource[T], from, to int64) ([]T, error) {
	ch := make(chan []T)
	sub, err := d.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer sub.Unsubscribe()

	result := make([]T, 0)
	for {
		select {
		case batch := <-ch:
			result = append(result, batch...)
		case err := <-sub.Err():
			if err != nil {
				return nil, errors.Wrap(err, "got error while fetch async")
			}
		case <-sub.Done():
			// errors sent before the subscription finished are still buffered
			select {
			case err := <-sub.Err():
				if err != nil {
					return nil, errors.Wrap(err, "got error while fetch async")
				}
			default:
			}
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "context done")
			}
			return result, nil
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context done")
		}
	}
}
