package infra

import "github.com/eliteGoblin/shield/internal/domain"

// OSPrivilegeProber implements domain.PrivilegeProber against the host OS.
// The platform check lives in privilege_windows.go / privilege_unix.go.
type OSPrivilegeProber struct{}

// NewPrivilegeProber creates a prober for the current platform.
func NewPrivilegeProber() domain.PrivilegeProber {
	return &OSPrivilegeProber{}
}

// IsElevated never panics or errors; any failure reports false.
func (p *OSPrivilegeProber) IsElevated() (elevated bool) {
	defer func() {
		if recover() != nil {
			elevated = false
		}
	}()
	return isElevated()
}

// StaticProber reports a fixed privilege level. Used by one-shot CLI commands
// that already probed once, and by tests.
type StaticProber bool

func (s StaticProber) IsElevated() bool { return bool(s) }

var _ domain.PrivilegeProber = (*OSPrivilegeProber)(nil)
var _ domain.PrivilegeProber = StaticProber(false)
