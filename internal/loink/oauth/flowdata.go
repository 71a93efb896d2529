package oauth

import (
	"errors"
	"sync"

	"github.com/loapp/lofeed/internal/database"
	"github.com/loapp/lofeed/internal/loink/token"
)

// FlowData carries the data necessary to perform one authorization workflow.
// A single flow may be outstanding at a time; it is stored under fixed keys and
// consumed, successfully or not, when the redirect callback comes back.
type FlowData struct {
	State string
	PKCE  PKCE
}

func newFlowData() (*FlowData, error) {
	state, err := token.GenRandomString(32, token.AlphaNumCharset)
	if err != nil {
		return nil, err
	}

	pkce, err := newPKCE()
	if err != nil {
		return nil, err
	}

	return &FlowData{
		State: state,
		PKCE:  pkce,
	}, nil
}

// KV is the durable string-keyed store the auth state persists to.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type Storage interface {
	Set(f *FlowData) error
	// Consume reads and deletes the outstanding flow in one step so a replayed
	// callback cannot validate against a stale state. Returns nil when no flow
	// is outstanding.
	Consume() (*FlowData, error)
}

type InMemoryStorage struct {
	lock sync.Mutex
	flow *FlowData
}

func defaultStorage() Storage {
	return &InMemoryStorage{}
}

func (c *InMemoryStorage) Set(f *FlowData) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.flow = f
	return nil
}

func (c *InMemoryStorage) Consume() (*FlowData, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	f := c.flow
	c.flow = nil
	return f, nil
}

func NewKVFlowStorage(kv KV) Storage {
	return &KVFlowStorage{kv: kv}
}

// KVFlowStorage keeps the flow in the durable store so the callback can be
// processed by a different process than the one that started the flow.
type KVFlowStorage struct {
	lock sync.Mutex
	kv   KV
}

func (c *KVFlowStorage) Set(f *FlowData) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.kv.Set(StateKey, f.State); err != nil {
		return err
	}
	return c.kv.Set(VerifierKey, f.PKCE.Verifier)
}

func (c *KVFlowStorage) Consume() (*FlowData, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state, err := c.kv.Get(StateKey)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	verifier, err := c.kv.Get(VerifierKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if err := c.kv.Delete(StateKey); err != nil {
		return nil, err
	}
	if err := c.kv.Delete(VerifierKey); err != nil {
		return nil, err
	}

	return &FlowData{
		State: state,
		PKCE: PKCE{
			Verifier:  verifier,
			Challenge: token.CodeChallenge(verifier),
			Method:    "S256",
		},
	}, nil
}
