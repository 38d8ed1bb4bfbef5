package da

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedBlobRef is returned by ParseBlobRef when ref does not match
// the "da:{height}:{commitment}" format.
var ErrMalformedBlobRef = errors.New("da: malformed blob ref")

// Client is the external DA layer's submission/fetch surface. The wire
// protocol to the actual DA node is out of scope (spec §1: "the DA client's
// wire details treated as an interface"); this is that interface, and
// mockda provides a local implementation for tests and single-node runs.
type Client interface {
	// Submit posts blob under namespace and returns the DA-side height and
	// commitment the caller can use to build a BlobRef.
	Submit(ctx context.Context, namespace Namespace, blob []byte) (daHeight uint64, commitment string, err error)
	// Fetch retrieves the blob previously submitted at (daHeight, namespace).
	// Used by recovery to replay a node's history from DA alone.
	Fetch(ctx context.Context, namespace Namespace, daHeight uint64) ([]byte, error)
}

// BlobRef formats the blob_ref recorded on a BlockRecord once DA submission
// succeeds: "da:{da_height}:{base64_commitment}".
func BlobRef(daHeight uint64, commitment string) string {
	return fmt.Sprintf("da:%d:%s", daHeight, commitment)
}

// ParseBlobRef reverses BlobRef, recovering the DA height and commitment a
// recovered node needs to Fetch the same blob again.
func ParseBlobRef(ref string) (daHeight uint64, commitment string, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 || parts[0] != "da" {
		return 0, "", ErrMalformedBlobRef
	}
	h, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, "", errors.Wrap(ErrMalformedBlobRef, err.Error())
	}
	return h, parts[2], nil
}
