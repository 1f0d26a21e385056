package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/pkg/util"
)

// RoleEntry is one row of the role→policy table.
type RoleEntry struct {
	Name           string `yaml:"name"`
	VLAN           int    `yaml:"vlan"`
	IPSet          string `yaml:"ipset"`
	Policy         string `yaml:"policy"`
	SessionTimeout int    `yaml:"sessionTimeout"`
}

type tableFile struct {
	Roles []RoleEntry `yaml:"roles"`
}

// Resolver maps a role to its network policy. The table is immutable after
// startup; Resolve has no side effects.
type Resolver struct {
	roles map[string]RoleEntry
}

// Load reads the role table from a YAML file.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy table: %w", err)
	}
	return Parse(data)
}

// Parse builds a Resolver from raw YAML.
func Parse(data []byte) (*Resolver, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy table: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("policy table defines no roles")
	}

	roles := make(map[string]RoleEntry, len(file.Roles))
	for _, entry := range file.Roles {
		if entry.Name == "" {
			return nil, fmt.Errorf("policy table entry missing name")
		}
		if entry.SessionTimeout <= 0 {
			return nil, fmt.Errorf("role %q has non-positive sessionTimeout", entry.Name)
		}
		if _, dup := roles[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate role %q in policy table", entry.Name)
		}
		roles[entry.Name] = entry
	}
	return &Resolver{roles: roles}, nil
}

// Resolve returns the policy snapshot for a role.
func (r *Resolver) Resolve(role string) (domain.PolicySnapshot, error) {
	entry, ok := r.roles[role]
	if !ok {
		return domain.PolicySnapshot{}, util.NewUnknownRole(role)
	}
	return domain.PolicySnapshot{
		VLAN:       entry.VLAN,
		IPSet:      entry.IPSet,
		PolicyName: entry.Policy,
	}, nil
}

// SessionTTL returns the configured session lifetime for a role.
func (r *Resolver) SessionTTL(role string) (time.Duration, error) {
	entry, ok := r.roles[role]
	if !ok {
		return 0, util.NewUnknownRole(role)
	}
	return time.Duration(entry.SessionTimeout) * time.Second, nil
}

// Roles lists the configured role names.
func (r *Resolver) Roles() []string {
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	return names
}
