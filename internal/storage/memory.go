package storage

import (
	"context"
	"sync"
	"time"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
)

// MemoryBackend is the zero-configuration Backend used when no Redis URL is
// configured. It is safe for concurrent use and is the default in
// development and in tests.
type MemoryBackend struct {
	mu        sync.RWMutex
	protocols map[string]*model.Definition
	sessions  map[string]*model.Session
	queues    map[string][]*model.Message
}

// NewMemoryBackend returns an empty in-memory Backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		protocols: make(map[string]*model.Definition),
		sessions:  make(map[string]*model.Session),
		queues:    make(map[string][]*model.Message),
	}
}

func (m *MemoryBackend) GetProtocol(_ context.Context, projectID, name, version string) (*model.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.protocols[protocolKey(projectID, name, version)]
	if !ok {
		return nil, corerr.New(corerr.NotFound, "storage.GetProtocol", "protocol not registered")
	}
	cp := *def
	return &cp, nil
}

func (m *MemoryBackend) SaveProtocol(_ context.Context, projectID string, def *model.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *def
	cp.ProjectID = projectID
	m.protocols[protocolKey(projectID, def.Name, def.Version)] = &cp
	return nil
}

func (m *MemoryBackend) ListProtocols(_ context.Context, projectID string, filter ProtocolFilter) ([]*model.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Definition
	for _, def := range m.protocols {
		if def.ProjectID != projectID {
			continue
		}
		if filter.Name != "" && def.Name != filter.Name {
			continue
		}
		if filter.Version != "" && def.Version != filter.Version {
			continue
		}
		cp := *def
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryBackend) DeleteProtocol(_ context.Context, projectID, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := protocolKey(projectID, name, version)
	if _, ok := m.protocols[key]; !ok {
		return corerr.New(corerr.NotFound, "storage.DeleteProtocol", "protocol not registered")
	}
	delete(m.protocols, key)
	return nil
}

func (m *MemoryBackend) GetSession(_ context.Context, projectID, sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionKey(projectID, sessionID)]
	if !ok {
		return nil, corerr.New(corerr.NotFound, "storage.GetSession", "session not found")
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryBackend) SaveSession(_ context.Context, projectID string, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	cp.ProjectID = projectID
	m.sessions[sessionKey(projectID, s.ID)] = &cp
	return nil
}

func (m *MemoryBackend) ListSessions(_ context.Context, projectID string, filter SessionFilter) ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Session
	for _, s := range m.sessions {
		if s.ProjectID != projectID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryBackend) DeleteSession(_ context.Context, projectID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(projectID, sessionID)
	if _, ok := m.sessions[key]; !ok {
		return corerr.New(corerr.NotFound, "storage.DeleteSession", "session not found")
	}
	delete(m.sessions, key)
	delete(m.queues, queueKey(projectID, sessionID))
	return nil
}

func (m *MemoryBackend) EnqueueMessage(_ context.Context, projectID, sessionID string, msg *model.Message, capacity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := queueKey(projectID, sessionID)
	q := m.queues[key]
	if capacity > 0 && len(q) >= capacity {
		return len(q), corerr.New(corerr.QueueFull, "storage.EnqueueMessage", "queue is at capacity")
	}

	cp := *msg
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = time.Now()
	}
	q = append(q, &cp)
	m.queues[key] = q
	return len(q), nil
}

func (m *MemoryBackend) DequeueMessages(_ context.Context, projectID, sessionID string, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := queueKey(projectID, sessionID)
	q := m.queues[key]
	if limit <= 0 || limit > len(q) {
		limit = len(q)
	}

	out := make([]*model.Message, limit)
	copy(out, q[:limit])
	m.queues[key] = q[limit:]
	return out, nil
}

func (m *MemoryBackend) GetQueueSize(_ context.Context, projectID, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queues[queueKey(projectID, sessionID)]), nil
}

func (m *MemoryBackend) ClearQueue(_ context.Context, projectID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, queueKey(projectID, sessionID))
	return nil
}
