package patterns

import "context"

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, service string, signatures []Signature) error

// StoreSignatures implements Store.
func (f StoreFunc) StoreSignatures(ctx context.Context, service string, signatures []Signature) error {
	return f(ctx, service, signatures)
}
