package catalog

import "github.com/eliteGoblin/shield/internal/domain"

// System profile ids.
const (
	StandardProfileID = "standard"
	StrictProfileID   = "strict"
)

var standardModules = []string{
	"telemetry",
	"advertising",
	"error-reporting",
	"wifi-sense",
	"smb1",
	"remote-assistance",
	"remote-reg",
}

// SystemProfiles returns the built-in profiles over the given hardening
// catalog. Standard hardens a conservative subset; strict hardens everything.
// The returned values are fresh copies.
func SystemProfiles(hardening *ModuleFeature) []domain.HardeningProfile {
	standard := make(map[string]bool, len(hardening.modules))
	strict := make(map[string]bool, len(hardening.modules))
	for _, id := range hardening.IDs() {
		standard[id] = false
		strict[id] = true
	}
	for _, id := range standardModules {
		if _, ok := hardening.Module(id); ok {
			standard[id] = true
		}
	}

	return []domain.HardeningProfile{
		{ID: StandardProfileID, Name: "Standard (Default)", IsSystem: true, Settings: standard},
		{ID: StrictProfileID, Name: "Strict (Maximum Security)", IsSystem: true, Settings: strict},
	}
}

// IsSystemProfile reports whether id names a built-in profile.
func IsSystemProfile(id string) bool {
	return id == StandardProfileID || id == StrictProfileID
}
