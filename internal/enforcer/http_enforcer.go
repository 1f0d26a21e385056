package enforcer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
)

// HTTPConfig configures the control-plane client.
type HTTPConfig struct {
	BaseURL          string
	RequestTimeout   time.Duration
	BreakerMaxReqs   uint32
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
	BreakerThreshold uint32
}

// HTTPEnforcer talks to the network control plane over HTTP. Calls go through
// a circuit breaker so a dead control plane fails fast instead of tying up
// request handlers.
type HTTPEnforcer struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type applyRequest struct {
	MAC    string `json:"mac"`
	VLAN   int    `json:"vlan"`
	IPSet  string `json:"ipset"`
	Policy string `json:"policy"`
}

type revokeRequest struct {
	MAC string `json:"mac"`
}

// NewHTTP builds an HTTP enforcer against cfg.BaseURL.
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) *HTTPEnforcer {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout)

	settings := gobreaker.Settings{
		Name:        "network-enforcer",
		MaxRequests: cfg.BreakerMaxReqs,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("enforcer circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &HTTPEnforcer{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Apply installs the policy for a MAC, superseding any prior rules.
func (e *HTTPEnforcer) Apply(ctx context.Context, mac string, policy domain.PolicySnapshot) error {
	_, err := e.breaker.Execute(func() (any, error) {
		resp, err := e.client.R().
			SetContext(ctx).
			SetBody(applyRequest{
				MAC:    mac,
				VLAN:   policy.VLAN,
				IPSet:  policy.IPSet,
				Policy: policy.PolicyName,
			}).
			Post("/enforce/apply")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("control plane returned %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("enforce apply mac=%s: %w", mac, err)
	}
	return nil
}

// Revoke removes any rules installed for a MAC.
func (e *HTTPEnforcer) Revoke(ctx context.Context, mac string) error {
	_, err := e.breaker.Execute(func() (any, error) {
		resp, err := e.client.R().
			SetContext(ctx).
			SetBody(revokeRequest{MAC: mac}).
			Post("/enforce/revoke")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("control plane returned %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("enforce revoke mac=%s: %w", mac, err)
	}
	return nil
}
