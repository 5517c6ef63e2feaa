package valkey

import (
	"context"

	"github.com/valkey-io/valkey-go"
)

// FlagStore implements ports.FlagStore. Flags have no expiry: a rider who
// opted into demo mode stays in it until they leave it.
type FlagStore struct {
	client valkey.Client
}

// NewFlagStore creates a flag store on an open client.
func NewFlagStore(client valkey.Client) *FlagStore {
	return &FlagStore{client: client}
}

// Get returns the flag value; ok is false when the key does not exist.
func (s *FlagStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores a flag value.
func (s *FlagStore) Set(ctx context.Context, key, value string) error {
	return s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Build()).Error()
}

// Remove deletes a flag.
func (s *FlagStore) Remove(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error()
}
