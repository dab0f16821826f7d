package cartstore

import "context"

// Repository is durable string key-value storage partitioned by scope. A scope is
// one browser session, so two visitors never see each other's cart_guest entry.
type Repository interface {
	// Get returns domain.ErrNotFound when the key has never been written or was deleted.
	Get(ctx context.Context, scope, key string) (string, error)
	Put(ctx context.Context, scope, key, value string) error
	// Delete is idempotent.
	Delete(ctx context.Context, scope, key string) error
}

// Scoped binds a Repository to a single scope.
type Scoped struct {
	repo  Repository
	scope string
}

// NewScoped returns the view of repo seen by one browser session.
func NewScoped(repo Repository, scope string) *Scoped {
	return &Scoped{repo: repo, scope: scope}
}

func (s *Scoped) Get(ctx context.Context, key string) (string, error) {
	return s.repo.Get(ctx, s.scope, key)
}

func (s *Scoped) Put(ctx context.Context, key, value string) error {
	return s.repo.Put(ctx, s.scope, key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.scope, key)
}

// Scope reports the bound scope.
func (s *Scoped) Scope() string {
	return s.scope
}
