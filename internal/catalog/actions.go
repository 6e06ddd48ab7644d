package catalog

// Action feature ids.
const (
	NetworkFeatureID  = "network"
	StorageFeatureID  = "storage"
	StartupFeatureID  = "startup"
	BatteryFeatureID  = "battery"
	UpdateFeatureID   = "update"
	SoftwareFeatureID = "software"
	BrowserFeatureID  = "browser"
	ToolsFeatureID    = "tools"
	SystemFeatureID   = "system"
)

// DNSPreset is a named resolver pair for network SetDNS.
type DNSPreset struct {
	Name      string `json:"name"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// DNSPresets lists the built-in resolvers. Automatic resets to DHCP.
var DNSPresets = []DNSPreset{
	{Name: "Automatic"},
	{Name: "Cloudflare", Primary: "1.1.1.1", Secondary: "1.0.0.1"},
	{Name: "Google", Primary: "8.8.8.8", Secondary: "8.8.4.4"},
	{Name: "AdGuard", Primary: "94.140.14.14", Secondary: "94.140.15.15"},
	{Name: "Quad9", Primary: "9.9.9.9", Secondary: "149.112.112.112"},
}

// NewNetworkFeature returns the adapter, DNS and hosts-file actions.
func NewNetworkFeature() *ActionFeature {
	return NewActionFeature(NetworkFeatureID, "Network Manager", "network-manager",
		listAction("GetAdapters", "List physical network adapters."),
		verbAction("GetPublicIP", "Look up the public IP address."),
		verbAction("TestLatency", "Measure latency to common endpoints."),
		verbAction("SetDNS", "Set DNS servers on an adapter.", required("AdapterIndex"), optional("DNS1"), optional("DNS2")),
		verbAction("Repair", "Flush DNS and renew IP configuration."),
		adminAction("UpdateHosts", "Install the ad-blocking hosts file."),
		adminAction("ResetHosts", "Restore the default hosts file."),
		adminAction("SetMacAddress", "Randomize the adapter MAC address.", required("AdapterIndex")),
		adminAction("ResetMacAddress", "Restore the factory MAC address.", required("AdapterIndex")),
		verbAction("PingTest", "Ping a set of well-known hosts."),
	)
}

// NewStorageFeature returns the disk cleanup actions.
func NewStorageFeature() *ActionFeature {
	return NewActionFeature(StorageFeatureID, "Storage Manager", "storage-manager",
		listAction("Status", "Report drive usage."),
		listAction("Clean", "Remove temporary files."),
		verbAction("FindLarge", "Find the largest files in the user profile."),
		verbAction("DeleteFile", "Delete one file.", required("Path")),
		adminAction("DeepClean", "Run component store and update cleanup."),
		verbAction("ToggleStorageSense", "Toggle Storage Sense."),
	)
}

// NewStartupFeature returns the autostart management actions.
func NewStartupFeature() *ActionFeature {
	return NewActionFeature(StartupFeatureID, "Startup Manager", "startup-manager",
		listAction("GetStartup", "List startup entries."),
		verbAction("Remove", "Disable a startup entry.", required("Name"), required("Location")),
		verbAction("Add", "Re-enable a startup entry.", required("Name"), required("Location")),
		adminAction("AddDelayed", "Move a startup entry to a delayed task.", required("Name"), required("Location")),
	)
}

// NewBatteryFeature returns the power plan and battery report actions.
func NewBatteryFeature() *ActionFeature {
	return NewActionFeature(BatteryFeatureID, "Battery Manager", "battery-manager",
		verbAction("Status", "Report battery and active power plan."),
		verbAction("GetDetailedReport", "Read battery capacity history."),
		verbAction("SetPlan", "Activate a power plan.", required("PlanGuid")),
		verbAction("UnlockUltimate", "Unlock the Ultimate Performance plan."),
		verbAction("ImportPlan", "Import a power plan file.", required("Path")),
		verbAction("Report", "Generate the HTML battery report."),
	)
}

// NewUpdateFeature returns the Windows Update control actions.
func NewUpdateFeature() *ActionFeature {
	return NewActionFeature(UpdateFeatureID, "Update Manager", "update-manager",
		verbAction("Status", "Report Windows Update state."),
		verbAction("Freeze", "Pause Windows Update."),
		verbAction("Unfreeze", "Resume Windows Update."),
		verbAction("ToggleDrivers", "Toggle driver delivery through Windows Update."),
		verbAction("ClearCache", "Clear the update download cache."),
	)
}

// NewSoftwareFeature returns the winget package actions.
func NewSoftwareFeature() *ActionFeature {
	return NewActionFeature(SoftwareFeatureID, "Software Manager", "software-manager",
		listAction("ListInstalled", "List installed packages."),
		listAction("Search", "Search the package catalog.").withParams(required("Query")),
		adminAction("Install", "Install a package.", required("Id")),
		adminAction("Uninstall", "Uninstall a package.", required("Id")),
	)
}

// NewBrowserFeature returns the browser policy actions.
func NewBrowserFeature() *ActionFeature {
	return NewActionFeature(BrowserFeatureID, "Browser Manager", "browser-manager",
		verbAction("CheckStatus", "Report applied browser policies."),
		adminAction("Harden", "Apply privacy policies to a browser.", required("Browser")),
	)
}

// NewToolsFeature returns the admin tool launchers.
func NewToolsFeature() *ActionFeature {
	return NewActionFeature(ToolsFeatureID, "Admin Tools", "tools-manager",
		adminAction("GodMode", "Open the God Mode folder."),
		adminAction("Registry", "Open Registry Editor."),
		adminAction("GroupPolicy", "Open Group Policy Editor."),
		adminAction("Services", "Open Services."),
		adminAction("TaskMgr", "Open Task Manager."),
		adminAction("ControlPanel", "Open Control Panel."),
		adminAction("PowerShell", "Open an elevated PowerShell."),
	)
}

// System action ids.
const (
	SystemInfoAction     = "info"
	FirewallStatusAction = "firewall"
)

// NewSystemFeature returns the parameterless system scripts.
func NewSystemFeature() *ActionFeature {
	return NewActionFeature(SystemFeatureID, "System", "",
		ActionSpec{ID: SystemInfoAction, Script: "get-system-info", Description: "Read OS, CPU, memory and disk details."},
		ActionSpec{ID: FirewallStatusAction, Script: "firewall-status", Description: "Report firewall profile states."},
	)
}

func (a ActionSpec) withParams(params ...Param) ActionSpec {
	a.Params = append(a.Params, params...)
	return a
}
