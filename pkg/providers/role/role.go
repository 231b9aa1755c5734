// Package role implements a filesystem-backed RoleProvider: one YAML
// file per role under a configured directory, grounded on
// role_manager.py's load_roles/save_role (one YAML file per role id,
// loaded eagerly at startup).
package role

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
	"gopkg.in/yaml.v3"
)

// Definition is one role's persisted shape.
type Definition struct {
	Name         string           `yaml:"name"`
	SystemPrompt string           `yaml:"system_prompt"`
	Voice        orchestrator.Voice `yaml:"voice"`
}

// deviceState is the per-device current role, persisted next to the
// role definitions (role_manager.py keeps this in its device config,
// not the role file itself).
type deviceState struct {
	RoleID string `yaml:"role_id"`
}

// Provider is a YAML-file-backed RoleProvider. Roles are loaded once at
// construction; SetRole persists the device's choice to its own small
// state file, which CurrentRole reads back on every call.
type Provider struct {
	dir          string
	defaultVoice orchestrator.Voice

	mu    sync.Mutex
	roles map[string]Definition
}

// New loads every "*.yaml" file in dir as a role keyed by its filename
// (minus extension). Missing dir is treated as "no roles configured".
func New(dir string, defaultVoice orchestrator.Voice) (*Provider, error) {
	p := &Provider{dir: dir, defaultVoice: defaultVoice, roles: map[string]Definition{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("role: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		roleID := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("role: read %s: %w", e.Name(), err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("role: parse %s: %w", e.Name(), err)
		}
		p.roles[roleID] = def
	}
	return p, nil
}

func (p *Provider) devicePath(deviceID string) string {
	return filepath.Join(p.dir, "."+deviceID+".state.yaml")
}

// CurrentRole implements orchestrator.RoleProvider: it reads the
// device's persisted choice, falling back to the first role loaded (by
// directory order) or an empty prompt/default voice when none exist.
func (p *Provider) CurrentRole(ctx context.Context, deviceID string) (roleID, systemPrompt string, voice orchestrator.Voice, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roleID = p.currentRoleIDLocked(deviceID)
	if roleID == "" {
		return "", "", p.defaultVoice, nil
	}
	def, ok := p.roles[roleID]
	if !ok {
		return "", "", p.defaultVoice, nil
	}
	return roleID, def.SystemPrompt, def.Voice, nil
}

func (p *Provider) currentRoleIDLocked(deviceID string) string {
	data, err := os.ReadFile(p.devicePath(deviceID))
	if err == nil {
		var st deviceState
		if yaml.Unmarshal(data, &st) == nil && st.RoleID != "" {
			if _, ok := p.roles[st.RoleID]; ok {
				return st.RoleID
			}
		}
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if id := strings.TrimSuffix(e.Name(), ".yaml"); id != e.Name() {
			if _, ok := p.roles[id]; ok {
				return id
			}
		}
	}
	return ""
}

// SetRole implements orchestrator.RoleProvider's change_role tool-call
// path (role_manager.py's per-device role switch). roleID must name a
// loaded role.
func (p *Provider) SetRole(ctx context.Context, deviceID, roleID string) (systemPrompt string, voice orchestrator.Voice, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	def, ok := p.roles[roleID]
	if !ok {
		return "", "", fmt.Errorf("role: unknown role %q", roleID)
	}

	data, err := yaml.Marshal(deviceState{RoleID: roleID})
	if err != nil {
		return "", "", fmt.Errorf("role: marshal device state: %w", err)
	}
	if err := os.WriteFile(p.devicePath(deviceID), data, 0o644); err != nil {
		return "", "", fmt.Errorf("role: persist device state: %w", err)
	}
	return def.SystemPrompt, def.Voice, nil
}
