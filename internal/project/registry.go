package project

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/logger"
)

var slugRE = regexp.MustCompile(`^[a-z][a-z0-9_]{1,31}$`)

// SessionCounter reports how many active sessions a project currently has,
// so DeleteProject can refuse to remove a project still in use. The Session
// Manager satisfies this without the project package importing it.
type SessionCounter interface {
	ActiveSessionCount(projectID string) int
}

// Registry is the Project Registry: an in-memory table of Projects keyed by
// slug, guarded by a single mutex for the map itself (per-project payload
// mutation happens under the same lock, mirroring the teacher's
// sessions.Manager pattern rather than one lock per entry).
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project
	sessions SessionCounter
}

// NewRegistry builds an empty Registry. sessions may be nil until the
// Session Manager is wired in; DeleteProject treats a nil counter as "no
// active sessions."
func NewRegistry(sessions SessionCounter) *Registry {
	return &Registry{
		projects: make(map[string]*Project),
		sessions: sessions,
	}
}

// ProjectIDs lists every known project slug, satisfying session.ProjectLister.
func (r *Registry) ProjectIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.projects))
	for id := range r.projects {
		ids = append(ids, id)
	}
	return ids
}

// CreateProject registers a new project, rejecting reserved or duplicate
// slugs, and issues one default API key.
func (r *Registry) CreateProject(id, name, description string, tags []string, cfg Config) (*Project, string, error) {
	if !slugRE.MatchString(id) {
		return nil, "", corerr.New(corerr.InvalidInput, "project.CreateProject", "slug must match ^[a-z][a-z0-9_]{1,31}$")
	}
	if reservedSlugs[id] {
		return nil, "", corerr.New(corerr.InvalidInput, "project.CreateProject", "slug is reserved")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[id]; exists {
		return nil, "", corerr.New(corerr.AlreadyExists, "project.CreateProject", "project already exists")
	}

	p := &Project{
		ID:          id,
		Name:        name,
		Description: description,
		Tags:        tags,
		Config:      cfg,
		Status:      StatusActive,
		CreatedAt:   time.Now(),
	}

	plaintext, key, err := r.issueKeyLocked(p)
	if err != nil {
		return nil, "", err
	}

	r.projects[id] = p
	logger.Info("project created", "project_id", id)
	_ = key
	return p, plaintext, nil
}

func (r *Registry) issueKeyLocked(p *Project) (string, APIKey, error) {
	plaintext, keyID, err := newAPIKeySecret(p.ID)
	if err != nil {
		return "", APIKey{}, corerr.Wrap(corerr.Internal, "project.issueKey", err)
	}

	key := APIKey{
		KeyID:     keyID,
		ProjectID: p.ID,
		Hash:      hashAPIKey(plaintext),
		Prefix:    keyPrefix(plaintext),
		CreatedAt: time.Now(),
		Active:    true,
	}
	p.APIKeys = append(p.APIKeys, key)
	return plaintext, key, nil
}

// GetProject looks up a project by slug, auto-provisioning "default" on
// first reference.
func (r *Registry) GetProject(id string) (*Project, error) {
	if id == DefaultProjectID {
		if err := r.ensureDefault(); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, corerr.New(corerr.NotFound, "project.GetProject", "project not found")
	}
	cp := *p
	return &cp, nil
}

func (r *Registry) ensureDefault() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[DefaultProjectID]; ok {
		return nil
	}

	p := &Project{
		ID:        DefaultProjectID,
		Name:      "Default",
		Config:    Config{MaxSessions: 1000, MaxProtocols: 100, MaxQueueSize: 1000, Discoverable: true},
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	if _, _, err := r.issueKeyLocked(p); err != nil {
		return err
	}
	r.projects[DefaultProjectID] = p
	logger.Info("default project auto-provisioned")
	return nil
}

// ListProjects returns active projects, optionally including inactive ones
// and/or filtering by a substring of Name. Non-discoverable projects are
// hidden unless nameFilter is non-empty (an explicit search still finds
// them).
func (r *Registry) ListProjects(includeInactive bool, nameFilter string) []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Project
	for _, p := range r.projects {
		if !includeInactive && p.Status != StatusActive {
			continue
		}
		if nameFilter == "" && !p.Config.Discoverable {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(nameFilter)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// UpdateProject mutates metadata/config in place via fn.
func (r *Registry) UpdateProject(id string, fn func(p *Project)) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, corerr.New(corerr.NotFound, "project.UpdateProject", "project not found")
	}
	fn(p)
	cp := *p
	return &cp, nil
}

// Archive sets a project's status to archived.
func (r *Registry) Archive(id string) error {
	_, err := r.UpdateProject(id, func(p *Project) { p.Status = StatusArchived })
	return err
}

// Restore sets an archived or suspended project back to active.
func (r *Registry) Restore(id string) error {
	_, err := r.UpdateProject(id, func(p *Project) { p.Status = StatusActive })
	return err
}

// DeleteProject removes a project outright, refusing when it still has
// active sessions.
func (r *Registry) DeleteProject(id string) error {
	if r.sessions != nil && r.sessions.ActiveSessionCount(id) > 0 {
		return corerr.New(corerr.Forbidden, "project.DeleteProject", "project has active sessions")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return corerr.New(corerr.NotFound, "project.DeleteProject", "project not found")
	}
	delete(r.projects, id)
	return nil
}

// ValidateAPIKey parses the plaintext key's prefix, locates the owning
// project, and confirms a stored hash matches an active, unexpired key.
func (r *Registry) ValidateAPIKey(plaintext string) (projectID, keyID string, err error) {
	slug, ok := parseAPIKeyProjectID(plaintext)
	if !ok {
		return "", "", corerr.New(corerr.InvalidInput, "project.ValidateAPIKey", "malformed api key")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[slug]
	if !ok {
		return "", "", corerr.New(corerr.Unauthorized, "project.ValidateAPIKey", "unknown project")
	}

	hash := hashAPIKey(plaintext)
	now := time.Now()
	for _, k := range p.APIKeys {
		if k.Hash != hash || !k.Active {
			continue
		}
		if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
			continue
		}
		return p.ID, k.KeyID, nil
	}
	return "", "", corerr.New(corerr.Unauthorized, "project.ValidateAPIKey", "key not recognized")
}

// RotateAPIKeys issues a fresh key for id. If keyID is non-empty, only that
// key is rotated; otherwise every active key is. Old keys expire
// immediately when gracePeriod is zero, otherwise gracePeriod after now.
func (r *Registry) RotateAPIKeys(id, keyID string, gracePeriod time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return "", corerr.New(corerr.NotFound, "project.RotateAPIKeys", "project not found")
	}

	expiry := time.Now().Add(gracePeriod)
	for i := range p.APIKeys {
		if keyID != "" && p.APIKeys[i].KeyID != keyID {
			continue
		}
		if !p.APIKeys[i].Active {
			continue
		}
		if gracePeriod <= 0 {
			p.APIKeys[i].Active = false
		} else {
			p.APIKeys[i].ExpiresAt = &expiry
		}
	}

	plaintext, _, err := r.issueKeyLocked(p)
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

// UpdateStatistics atomically increments a project's rolling counters.
func (r *Registry) UpdateStatistics(id string, sessionsDelta, sentDelta, receivedDelta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return corerr.New(corerr.NotFound, "project.UpdateStatistics", "project not found")
	}
	p.Statistics.SessionsCreated += sessionsDelta
	p.Statistics.MessagesSent += sentDelta
	p.Statistics.MessagesReceived += receivedDelta
	return nil
}
