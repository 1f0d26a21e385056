package enforcer

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
)

// Enforcer is the boundary to the network control plane that programs
// VLAN assignment and ipset membership for a client.
//
// Apply supersedes any rules previously installed for the MAC, so replacing
// a session is a single Apply with the new snapshot. Revoke removes whatever
// is installed for the MAC and succeeds when nothing is.
type Enforcer interface {
	Apply(ctx context.Context, mac string, policy domain.PolicySnapshot) error
	Revoke(ctx context.Context, mac string) error
}

// Noop satisfies Enforcer when no control plane is configured, e.g. in
// development where interception is handled out of band.
type Noop struct {
	logger *zap.Logger
}

// NewNoop builds the no-op enforcer.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Apply(_ context.Context, mac string, policy domain.PolicySnapshot) error {
	n.logger.Debug("noop enforce apply",
		zap.String("mac", mac),
		zap.Int("vlan", policy.VLAN),
		zap.String("ipset", policy.IPSet))
	return nil
}

func (n *Noop) Revoke(_ context.Context, mac string) error {
	n.logger.Debug("noop enforce revoke", zap.String("mac", mac))
	return nil
}
