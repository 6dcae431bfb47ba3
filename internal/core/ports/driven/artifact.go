package driven

import "context"

// ArtifactStore holds named binary artifacts such as index snapshots.
// Put overwrites. Get returns domain.ErrNotFound when the artifact is absent.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error

	// Location describes where name is stored, for logs and CLI output.
	Location(name string) string
}
