// Package mockda is an in-memory implementation of da.Client for tests and
// local single-node runs where no real DA endpoint is configured.
package mockda

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/fontana-rollup/fontana/internal/da"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
)

type entry struct {
	namespace da.Namespace
	blob      []byte
}

// Client stores submitted blobs in memory, keyed by an incrementing
// DA-side height, and records which height a given block height landed at
// so it can double as the indexer a Recovery run needs to replay from.
type Client struct {
	mu        sync.Mutex
	entries   []entry
	blobRefOf map[uint64]string // rollup block height -> blob_ref

	// FailNextN, if positive, makes the next N Submit calls return a
	// transient DAError before decrementing. PermanentNamespace, if set,
	// makes any Submit under that exact namespace fail permanently.
	FailNextN          int
	PermanentNamespace *da.Namespace
}

// New constructs an empty mock DA client.
func New() *Client {
	return &Client{blobRefOf: make(map[uint64]string)}
}

// Submit implements da.Client.
func (c *Client) Submit(_ context.Context, namespace da.Namespace, blob []byte) (uint64, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PermanentNamespace != nil && namespace == *c.PermanentNamespace {
		return 0, "", ledgertypes.NewDAError(ledgertypes.DAPermanent, "namespace misconfigured", nil)
	}
	if c.FailNextN > 0 {
		c.FailNextN--
		return 0, "", ledgertypes.NewDAError(ledgertypes.DATransient, "simulated transient failure", nil)
	}

	daHeight := uint64(len(c.entries))
	c.entries = append(c.entries, entry{namespace: namespace, blob: append([]byte{}, blob...)})
	sum := ledgertypes.SumHash(blob)
	commitment := base64.StdEncoding.EncodeToString(sum[:])
	return daHeight, commitment, nil
}

// Fetch implements da.Client.
func (c *Client) Fetch(_ context.Context, namespace da.Namespace, daHeight uint64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if daHeight >= uint64(len(c.entries)) {
		return nil, ledgertypes.NewDAError(ledgertypes.DAPermanent, "no such da height", nil)
	}
	e := c.entries[daHeight]
	if e.namespace != namespace {
		return nil, ledgertypes.NewDAError(ledgertypes.DAPermanent, "namespace mismatch at da height", nil)
	}
	return append([]byte{}, e.blob...), nil
}

// RecordBlobRef lets a test-side poster wrapper (or the real Poster, via a
// thin adapter) tell the mock which blob_ref a rollup height resolved to,
// so BlobRefAt can serve as the recovery indexer without a real external
// indexer service.
func (c *Client) RecordBlobRef(height uint64, blobRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobRefOf[height] = blobRef
}

// BlobRefAt implements the recovery package's Indexer interface.
func (c *Client) BlobRefAt(_ context.Context, height uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.blobRefOf[height]
	return ref, ok
}
