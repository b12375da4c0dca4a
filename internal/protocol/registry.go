// Package protocol implements the Protocol Registry (spec §4.3): schema
// registration, lookup, and payload validation against the registered JSON
// Schema. Grounded on the teacher's registry-style components (internal
// config/auth each keep a small in-process table guarded by a mutex-free
// Backend call) and enriched with github.com/xeipuuv/gojsonschema, the
// validator used across the retrieved pack for this concern.
package protocol

import (
	"context"
	"fmt"
	"regexp"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/model"
	"github.com/agentcomm/comm-server/internal/storage"
)

var nameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{1,63}$`)
var semverRE = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Registry is the Protocol Registry. One instance is shared across every
// project; all operations are scoped by projectID.
type Registry struct {
	backend storage.Backend
}

// NewRegistry builds a Registry backed by b.
func NewRegistry(b storage.Backend) *Registry {
	return &Registry{backend: b}
}

// Register validates def's name, version, and schema document, then saves
// it. Re-registering the same (name, version) overwrites the prior
// definition — the registry does not version-lock.
func (r *Registry) Register(ctx context.Context, projectID string, def *model.Definition) error {
	if !nameRE.MatchString(def.Name) {
		return corerr.New(corerr.InvalidInput, "protocol.Register", "protocol name must match ^[a-zA-Z][a-zA-Z0-9_.-]{1,63}$")
	}
	if !semverRE.MatchString(def.Version) {
		return corerr.New(corerr.InvalidInput, "protocol.Register", "version must be MAJOR.MINOR.PATCH")
	}
	if err := validateSchemaDocument(def.Schema); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "protocol.Register", err)
	}

	if err := r.backend.SaveProtocol(ctx, projectID, def); err != nil {
		return fmt.Errorf("protocol.Register: %w", err)
	}
	return nil
}

// Get looks up a protocol definition by exact name and version.
func (r *Registry) Get(ctx context.Context, projectID, name, version string) (*model.Definition, error) {
	def, err := r.backend.GetProtocol(ctx, projectID, name, version)
	if err != nil {
		return nil, fmt.Errorf("protocol.Get: %w", err)
	}
	return def, nil
}

// List returns every definition under projectID matching filter.
func (r *Registry) List(ctx context.Context, projectID string, filter storage.ProtocolFilter) ([]*model.Definition, error) {
	defs, err := r.backend.ListProtocols(ctx, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("protocol.List: %w", err)
	}
	return defs, nil
}

// Deprecate marks a protocol version deprecated without removing it, so
// existing sessions keep working while new negotiations avoid it.
func (r *Registry) Deprecate(ctx context.Context, projectID, name, version string) error {
	def, err := r.backend.GetProtocol(ctx, projectID, name, version)
	if err != nil {
		return fmt.Errorf("protocol.Deprecate: %w", err)
	}
	def.Deprecated = true
	if err := r.backend.SaveProtocol(ctx, projectID, def); err != nil {
		return fmt.Errorf("protocol.Deprecate: %w", err)
	}
	return nil
}

// Delete removes a protocol definition outright.
func (r *Registry) Delete(ctx context.Context, projectID, name, version string) error {
	if err := r.backend.DeleteProtocol(ctx, projectID, name, version); err != nil {
		return fmt.Errorf("protocol.Delete: %w", err)
	}
	return nil
}

// Validate checks payload against the registered schema for (name,
// version).
func (r *Registry) Validate(ctx context.Context, projectID, name, version string, payload []byte) (*model.ValidationResult, error) {
	def, err := r.backend.GetProtocol(ctx, projectID, name, version)
	if err != nil {
		return nil, fmt.Errorf("protocol.Validate: %w", err)
	}
	return validatePayload(def.Schema, payload)
}
