package api

import "context"

// Resource is a server-managed record subject to CRUD.
type Resource interface {
	ResourceID() string
}

// ResourceClient is the generic contract behind every list screen. Scope is
// a parent-resource id narrowing the collection (an election id for
// candidates); clients for unscoped resources ignore it.
type ResourceClient[T Resource] interface {
	List(ctx context.Context, scope string) ([]T, error)
	Create(ctx context.Context, scope string, draft T) (T, error)
	Update(ctx context.Context, scope, id string, draft T) (T, error)
	Remove(ctx context.Context, scope, id string) error
}
