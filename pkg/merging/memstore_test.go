package merging

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Ramsey-B/clover/pkg/models"
)

var errStore = errors.New("store unavailable")

// memStore is an in-memory Store with failure injection per operation. Operation names are
// "update", "count", "delete" and the dependent kinds.
type memStore struct {
	mu      sync.Mutex
	clients map[string]*models.Client
	owners  map[models.DependentKind]map[string]string
	calls   []string
	failOn  map[string]bool
	blockOn map[string]bool
	panicOn map[string]bool
}

func newMemStore(clients ...models.Client) *memStore {
	s := &memStore{
		clients: map[string]*models.Client{},
		owners:  map[models.DependentKind]map[string]string{},
		failOn:  map[string]bool{},
		blockOn: map[string]bool{},
		panicOn: map[string]bool{},
	}
	for i := range clients {
		c := clients[i]
		s.clients[c.ID] = &c
	}
	for _, kind := range models.DependentKinds {
		s.owners[kind] = map[string]string{}
	}
	return s
}

func (s *memStore) addDependent(kind models.DependentKind, id, clientID string) {
	s.owners[kind][id] = clientID
}

func (s *memStore) count(kind models.DependentKind, clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, owner := range s.owners[kind] {
		if owner == clientID {
			n++
		}
	}
	return n
}

func (s *memStore) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	fail, block, boom := s.failOn[op], s.blockOn[op], s.panicOn[op]
	s.mu.Unlock()

	if boom {
		panic("store exploded during " + op)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return errStore
	}
	return nil
}

func (s *memStore) CountDependents(ctx context.Context, _ string, kind models.DependentKind, clientIDs []string) (map[string]int, error) {
	if err := s.enter(ctx, "count"); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, id := range clientIDs {
		if n := s.count(kind, id); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (s *memStore) ReassignDependents(ctx context.Context, _ string, kind models.DependentKind, fromIDs []string, toID string) (int, error) {
	if err := s.enter(ctx, string(kind)); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	from := map[string]bool{}
	for _, id := range fromIDs {
		from[id] = true
	}
	moved := 0
	for dep, owner := range s.owners[kind] {
		if from[owner] {
			s.owners[kind][dep] = toID
			moved++
		}
	}
	return moved, nil
}

func (s *memStore) UpdateClientFields(ctx context.Context, _ string, clientID string, values []models.FieldValue) error {
	if err := s.enter(ctx, "update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return errors.New("client not found")
	}
	for _, v := range values {
		c.SetField(v.Field, models.StringPtr(v.Value))
	}
	return nil
}

func (s *memStore) DeleteClients(ctx context.Context, _ string, clientIDs []string) (int, error) {
	if err := s.enter(ctx, "delete"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range clientIDs {
		if _, ok := s.clients[id]; ok {
			delete(s.clients, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) client(id string) *models.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

func (s *memStore) clientIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
