package optimistic

import "context"

// OpFunc adapts a pair of functions to Op.
type OpFunc[S any] struct {
	Name        string
	ApplyFunc   func(S) (S, error)
	PersistFunc func(ctx context.Context) error
}

func (o OpFunc[S]) Apply(s S) (S, error) { return o.ApplyFunc(s) }

func (o OpFunc[S]) Persist(ctx context.Context) error {
	if o.PersistFunc == nil {
		return nil
	}
	return o.PersistFunc(ctx)
}

func (o OpFunc[S]) String() string { return o.Name }
