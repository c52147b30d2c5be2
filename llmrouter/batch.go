package llmrouter

import (
	"context"
	"sync"
)

// EmbedBatchResult pairs one batch input index with its outcome.
type EmbedBatchResult struct {
	Index    int            `json:"index"`
	Response *EmbedResponse `json:"response,omitempty"`
	Err      error          `json:"-"`
}

// CompleteBatch runs the requests concurrently through Complete, bounded by
// the client's parallelism limit. Results are positional: results[i] always
// corresponds to reqs[i] regardless of completion order, and one item's
// failure never disturbs the others.
func (c *Client) CompleteBatch(ctx context.Context, reqs []ChatRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	sem := make(chan struct{}, c.maxParallel)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req ChatRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resp, err := c.Complete(ctx, req)
			results[i] = BatchResult{Index: i, Response: resp, Err: err}
		}(i, req)
	}

	wg.Wait()
	return results
}

// EmbedBatch is the embedding counterpart of CompleteBatch.
func (c *Client) EmbedBatch(ctx context.Context, reqs []EmbedRequest) []EmbedBatchResult {
	results := make([]EmbedBatchResult, len(reqs))
	sem := make(chan struct{}, c.maxParallel)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req EmbedRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resp, err := c.Embed(ctx, req)
			results[i] = EmbedBatchResult{Index: i, Response: resp, Err: err}
		}(i, req)
	}

	wg.Wait()
	return results
}
