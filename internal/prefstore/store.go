// Package prefstore is the durable key-value store shared by the page
// observer, the interactive surface and the relay of one installation.
//
// Every key is read and written independently. There are no cross-key
// transactions and no change notifications; contexts that care about a key
// poll it or are told about it through messaging.
package prefstore

import "context"

const (
	KeyUserID      = "userId"
	KeyPreferences = "preferences"
	KeyPostContent = "currentPostContent"
	KeyLastComment = "lastComment"
)

// Store is a per-key atomic key-value store. Get returns (nil, nil) for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
