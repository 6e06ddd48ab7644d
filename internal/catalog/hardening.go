package catalog

import "github.com/eliteGoblin/shield/internal/domain"

// HardeningFeatureID is the routing id of the privacy and security catalog.
const HardeningFeatureID = "hardening"

// NewHardeningFeature returns the 21 privacy and attack-surface modules.
func NewHardeningFeature() *ModuleFeature {
	return NewModuleFeature(HardeningFeatureID, "System Hardening",
		// Privacy
		domain.ModuleDescriptor{ID: "telemetry", Name: "Disable System Telemetry", Description: "Prevents Windows from sending diagnostic data to Microsoft.", Script: "system-telemetry"},
		domain.ModuleDescriptor{ID: "location", Name: "Disable Location Services", Description: "Blocks applications from accessing precise geolocation data.", Script: "windows-location"},
		domain.ModuleDescriptor{ID: "advertising", Name: "Disable Advertising ID", Description: "Prevents apps from using your ID for targeted ads.", Script: "advertising-id"},
		domain.ModuleDescriptor{ID: "cortana", Name: "Disable Cortana", Description: "Disables the Cortana voice assistant and search integration.", Script: "disable-cortana"},
		domain.ModuleDescriptor{ID: "activity-history", Name: "Disable Activity History", Description: "Stops Windows from tracking your timeline and activity feed.", Script: "disable-activity-history"},
		domain.ModuleDescriptor{ID: "error-reporting", Name: "Disable Error Reporting", Description: "Prevents crash dumps and error logs from being sent to Microsoft.", Script: "disable-error-reporting"},
		domain.ModuleDescriptor{ID: "launch-tracking", Name: "Disable App Launch Tracking", Description: "Stops Start Menu from tracking frequently used applications.", Script: "disable-app-launch-tracking"},

		// Network
		domain.ModuleDescriptor{ID: "wifi-sense", Name: "Disable Wi-Fi Sense", Description: "Prevents automatic connection to suggested Wi-Fi hotspots.", Script: "disable-wifi-sense"},
		domain.ModuleDescriptor{ID: "remote-assistance", Name: "Disable Remote Assistance", Description: "Blocks unsolicited remote assistance connections.", Script: "disable-remote-assistance"},
		domain.ModuleDescriptor{ID: "smb1", Name: "Disable SMBv1 Protocol", Description: "Disables the insecure legacy SMBv1 file sharing protocol.", Script: "disable-smb1"},
		domain.ModuleDescriptor{ID: "defender-pua", Name: "Enable Defender PUA Protection", Description: "Enables protection against Potentially Unwanted Applications.", Script: "enable-defender-pua"},
		domain.ModuleDescriptor{ID: "llmnr", Name: "Disable LLMNR", Description: "Prevents local network broadcast name resolution leaks.", Script: "disable-llmnr"},
		domain.ModuleDescriptor{ID: "netbios", Name: "Disable NetBIOS", Description: "Disables legacy NetBIOS protocol on network adapters.", Script: "disable-netbios"},
		domain.ModuleDescriptor{ID: "wpad", Name: "Disable WPAD", Description: "Prevents Web Proxy Auto-Discovery attacks.", Script: "disable-wpad"},
		domain.ModuleDescriptor{ID: "rdp", Name: "Disable Remote Desktop", Description: "Completely disables RDP connections and services.", Script: "disable-rdp"},
		domain.ModuleDescriptor{ID: "autoplay", Name: "Disable drive AutoPlay", Description: "Prevents automatic execution of media (USB) content.", Script: "disable-autoplay"},

		// Legacy and sync
		domain.ModuleDescriptor{ID: "psv2", Name: "Disable PowerShell v2", Description: "Removes the legacy PowerShell v2 engine to prevent downgrade attacks.", Script: "disable-powershell-v2"},
		domain.ModuleDescriptor{ID: "clipboard", Name: "Disable Clipboard Sync", Description: "Stops clipboard data from syncing to the cloud.", Script: "disable-clipboard-sync"},
		domain.ModuleDescriptor{ID: "typing", Name: "Disable Typing Insights", Description: "Prevents Windows from analyzing your typing and inking.", Script: "disable-typing-insights"},
		domain.ModuleDescriptor{ID: "shared-exp", Name: "Disable Shared Experiences", Description: `Stops "Share across devices" tracking.`, Script: "disable-shared-experiences"},
		domain.ModuleDescriptor{ID: "remote-reg", Name: "Disable Remote Registry", Description: "Prevents remote modification of the system registry.", Script: "disable-remote-registry"},
	)
}
