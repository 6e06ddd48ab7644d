package catalog

import "github.com/eliteGoblin/shield/internal/domain"

const (
	DebloatFeatureID = "debloat"
	MiscFeatureID    = "misc"
)

// NewDebloatFeature returns the bundled-app removal modules.
// Enable here means "remove", matching the hardening direction.
func NewDebloatFeature() *ModuleFeature {
	return NewModuleFeature(DebloatFeatureID, "Debloat",
		domain.ModuleDescriptor{ID: "onedrive", Name: "Uninstall OneDrive", Description: "Completely removes the OneDrive application/integration.", Script: "remove-onedrive"},
		domain.ModuleDescriptor{ID: "xbox", Name: "Remove Xbox Suite", Description: "Removes Xbox App, Game Bar, UI, and Overlays.", Script: "remove-xbox-apps"},
		domain.ModuleDescriptor{ID: "bing", Name: "Remove Bing Suite", Description: "Removes Weather, News, Finance, and Sports apps.", Script: "remove-bing-bloat"},
		domain.ModuleDescriptor{ID: "uwp-basic", Name: "Remove UWP Bloat", Description: "Removes 3D Builder, Solitaire, Tips, Mixed Reality, etc.", Script: "remove-uwp-basic"},
		domain.ModuleDescriptor{ID: "phone", Name: "Remove Phone Link", Description: `Uninstalls the "Your Phone" / Phone Link app integration.`, Script: "remove-your-phone"},
		domain.ModuleDescriptor{ID: "maps", Name: "Remove Windows Maps", Description: "Uninstalls the offline Windows Maps application.", Script: "remove-maps"},
		domain.ModuleDescriptor{ID: "quick-assist", Name: "Remove Quick Assist", Description: "Uninstalls the Quick Assist remote help tool.", Script: "remove-quick-assist"},
		domain.ModuleDescriptor{ID: "cortana-app", Name: "Remove Cortana App", Description: "Uninstall the actual Cortana app package.", Script: "remove-cortana-app"},
		domain.ModuleDescriptor{ID: "people", Name: "Disable People Bar", Description: `Removes the "People" icon and contact integration from Taskbar.`, Script: "remove-people-bar"},
		domain.ModuleDescriptor{ID: "game-bar", Name: "Disable Xbox Game Bar", Description: "Disables Game DVR and recording overlays (Registry only).", Script: "disable-game-bar"},
		domain.ModuleDescriptor{ID: "consumer-features", Name: "Disable Consumer Features", Description: "Stops auto-installation of sponsored apps.", Script: "disable-consumer-features"},
	)
}

// NewMiscFeature returns the shell and Explorer tweaks.
func NewMiscFeature() *ModuleFeature {
	return NewModuleFeature(MiscFeatureID, "Misc Tweaks",
		domain.ModuleDescriptor{ID: "classic-context-menu", Name: "Classic Context Menu", Description: "Restores the Windows 10 style right-click menu (Requires Explorer Restart).", Script: "toggle-classic-context-menu"},
		domain.ModuleDescriptor{ID: "web-search", Name: "Disable Web Search", Description: "Prevents Bing/Web results from appearing in the Start Menu.", Script: "disable-web-search"},
		domain.ModuleDescriptor{ID: "lock-screen", Name: "Disable Lock Screen", Description: `Skips the "Slide to Unlock" screen at boot.`, Script: "disable-lock-screen"},
		domain.ModuleDescriptor{ID: "verbose-logon", Name: "Verbose Boot Messages", Description: "Shows detailed status during boot/shutdown.", Script: "enable-verbose-logon"},
		domain.ModuleDescriptor{ID: "3d-objects", Name: `Remove "3D Objects"`, Description: `Hides the "3D Objects" folder from This PC.`, Script: "remove-3d-objects"},
		domain.ModuleDescriptor{ID: "file-ext", Name: "Show File Extensions", Description: "Always show file extensions in Explorer.", Script: "toggle-file-extensions"},
		domain.ModuleDescriptor{ID: "hidden-files", Name: "Show Hidden Files", Description: "Reveal hidden system files and folders in Explorer.", Script: "toggle-hidden-files"},
		domain.ModuleDescriptor{ID: "aero-shake", Name: "Disable Aero Shake", Description: "Prevents minimizing all other windows when shaking a window title bar.", Script: "disable-aero-shake"},
		domain.ModuleDescriptor{ID: "store-prompt", Name: `Disable Store "Open With"`, Description: "Prevents Windows from suggesting the Store for unknown file types.", Script: "disable-store-open-with"},
		domain.ModuleDescriptor{ID: "god-mode", Name: "Enable God Mode", Description: `Creates a "God Mode" folder on your Desktop with all Control Panel links.`, Script: "create-god-mode"},
		domain.ModuleDescriptor{ID: "snap-assist", Name: "Disable Snap Assist", Description: "Stops the suggested windows popup when snapping a window.", Script: "disable-snap-assist"},
		domain.ModuleDescriptor{ID: "welcome-exp", Name: "Disable Welcome Nags", Description: `Stops "Let's finish setting up your device" screens after updates.`, Script: "disable-welcome-experience"},
		domain.ModuleDescriptor{ID: "driver-updates", Name: "Freeze Driver Updates", Description: "Prevents Windows Update from replacing your working drivers.", Script: "disable-driver-updates"},
	)
}
