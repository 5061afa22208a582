package threads

import (
	"context"
	"fmt"

	"github.com/threadsdev/go-threads/pkg/types"
)

// ThreadIterator walks the user's thread listing one item at a time,
// fetching pages on demand via the listing endpoint's after cursor.
type ThreadIterator struct {
	client    *Client
	options   *ListingOptions
	buffer    []*types.Thread
	bufferIdx int
	after     string
	hasMore   bool
	err       error
	ctx       context.Context
}

// NewThreadIterator creates an iterator over the user's threads, newest
// first. Since/Until on options bound the window; Before/After are managed
// by the iterator and must be left empty.
func (c *Client) NewThreadIterator(ctx context.Context, options *ListingOptions) *ThreadIterator {
	opts := &ListingOptions{Limit: 25}
	if options != nil {
		opts.Since = options.Since
		opts.Until = options.Until
		if options.Limit > 0 {
			opts.Limit = options.Limit
		}
	}

	return &ThreadIterator{
		client:  c,
		options: opts,
		hasMore: true,
		ctx:     ctx,
	}
}

// HasNext returns true if there are more threads to iterate through.
func (it *ThreadIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next thread in the iteration. Once the listing is
// exhausted it returns an error; check HasNext to stop cleanly.
func (it *ThreadIterator) Next() (*types.Thread, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.bufferIdx >= len(it.buffer) {
		if !it.hasMore {
			return nil, fmt.Errorf("no more threads available")
		}
		if err := it.fetchPage(); err != nil {
			it.err = err
			return nil, err
		}
		if len(it.buffer) == 0 {
			it.hasMore = false
			return nil, fmt.Errorf("no more threads available")
		}
	}

	thread := it.buffer[it.bufferIdx]
	it.bufferIdx++
	return thread, nil
}

// Err returns the first error encountered during iteration, if any.
func (it *ThreadIterator) Err() error {
	return it.err
}

func (it *ThreadIterator) fetchPage() error {
	opts := *it.options
	opts.After = it.after

	listing, err := it.client.Threads(it.ctx, &opts)
	if err != nil {
		return err
	}

	it.buffer = listing.Data
	it.bufferIdx = 0

	it.after = ""
	if listing.Paging != nil {
		it.after = listing.Paging.Cursors.After
	}
	it.hasMore = it.after != "" && len(listing.Data) > 0

	return nil
}
