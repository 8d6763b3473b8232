package services

import "github.com/colefleming/vouch/internal/config"

// PolicyProvider supplies the current security policy. Services read it at
// call time rather than caching it, so implementations backed by a
// hot-reloading source change behavior without a restart.
type PolicyProvider interface {
	Policy() config.AuthConfig
}

// StaticPolicy serves one immutable policy value.
type StaticPolicy struct {
	cfg config.AuthConfig
}

func NewStaticPolicy(cfg config.AuthConfig) *StaticPolicy {
	return &StaticPolicy{cfg: cfg}
}

func (p *StaticPolicy) Policy() config.AuthConfig {
	return p.cfg
}
