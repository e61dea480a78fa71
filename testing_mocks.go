package offline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
)

var errNotFound = stderrors.New("event not found")

// memStore is an in-memory Store with failure injection for tests.
type memStore struct {
	mu      sync.Mutex
	actions []Action

	loadErr  error
	saveErr  error
	resetErr error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) Load(ctx context.Context) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out, nil
}

func (s *memStore) Save(ctx context.Context, actions []Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.actions = make([]Action, len(actions))
	copy(s.actions, actions)
	return nil
}

func (s *memStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	s.actions = nil
	return nil
}

func (s *memStore) Close() error { return nil }

// mockExecutor is an in-memory backend with per-kind error injection and
// real idempotent participant-set semantics.
type mockExecutor struct {
	mu sync.Mutex

	events  map[string]map[string]interface{}
	nextID  int
	creates []map[string]interface{}

	createCalls int
	joinCalls   int
	leaveCalls  int
	updateCalls int
	deleteCalls int

	createErr error
	joinErr   error
	leaveErr  error
	updateErr error
	deleteErr error

	// joinBlock, when set, stalls every Join until the channel is closed.
	joinBlock chan struct{}
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{events: make(map[string]map[string]interface{})}
}

func (m *mockExecutor) Create(ctx context.Context, payload map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}
	m.nextID++
	id := fmt.Sprintf("evt-%d", m.nextID)
	doc := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		doc[k] = v
	}
	m.events[id] = doc
	m.creates = append(m.creates, doc)
	return id, nil
}

func (m *mockExecutor) Join(ctx context.Context, eventID, userID string) error {
	m.mu.Lock()
	m.joinCalls++
	block := m.joinBlock
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return m.joinErr
	}
	doc, ok := m.events[eventID]
	if !ok {
		doc = map[string]interface{}{}
		m.events[eventID] = doc
	}
	for _, existing := range m.participantsLocked(eventID) {
		if existing == userID {
			return nil // union semantics: already a member
		}
	}
	doc[ParticipantsField] = append(m.participantsLocked(eventID), userID)
	return nil
}

func (m *mockExecutor) Leave(ctx context.Context, eventID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveCalls++
	if m.leaveErr != nil {
		return m.leaveErr
	}
	doc, ok := m.events[eventID]
	if !ok {
		return nil
	}
	kept := []string{}
	for _, existing := range m.participantsLocked(eventID) {
		if existing != userID {
			kept = append(kept, existing)
		}
	}
	doc[ParticipantsField] = kept
	return nil
}

func (m *mockExecutor) Update(ctx context.Context, eventID string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	doc, ok := m.events[eventID]
	if !ok {
		return queueErrors.NewNotFoundError(queueErrors.OpUpdate, errNotFound)
	}
	for k, v := range payload {
		doc[k] = v
	}
	return nil
}

func (m *mockExecutor) Delete(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.events[eventID]; !ok {
		return queueErrors.NewNotFoundError(queueErrors.OpDelete, errNotFound)
	}
	delete(m.events, eventID)
	return nil
}

// joinCallCount reads the join counter safely while a pass is in flight.
func (m *mockExecutor) joinCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinCalls
}

// participants returns the participant set of an event.
func (m *mockExecutor) participants(eventID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participantsLocked(eventID)
}

func (m *mockExecutor) participantsLocked(eventID string) []string {
	doc, ok := m.events[eventID]
	if !ok {
		return nil
	}
	switch v := doc[ParticipantsField].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// stubConnectivity is a settable ConnectivitySource and QualitySource.
type stubConnectivity struct {
	mu      sync.Mutex
	quality ConnectionQuality
}

func newStubConnectivity(quality ConnectionQuality) *stubConnectivity {
	return &stubConnectivity{quality: quality}
}

func (s *stubConnectivity) set(quality ConnectionQuality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = quality
}

func (s *stubConnectivity) Quality() ConnectionQuality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

func (s *stubConnectivity) Online() bool {
	return s.Quality() != QualityOffline
}

// mockNotifier counts bridge nudges.
type mockNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *mockNotifier) Notify(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return nil
}

func (n *mockNotifier) notifications() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}
