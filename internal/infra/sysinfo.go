package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// HostInfo is the machine summary shown next to the security posture.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelVersion   string `json:"kernelVersion"`
	Arch            string `json:"arch"`
	UptimeSeconds   uint64 `json:"uptimeSeconds"`
}

// ReadHostInfo collects host details through gopsutil.
func ReadHostInfo(ctx context.Context) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host info: %w", err)
	}

	hi := &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		UptimeSeconds:   info.Uptime,
	}
	if hi.Arch == "" {
		hi.Arch = runtime.GOARCH
	}
	if hi.OS == "windows" {
		hi.PlatformVersion = windowsDisplayVersion(info.KernelVersion, info.PlatformVersion)
	}
	return hi, nil
}

// windowsDisplayVersion maps kernel 10.0.x with build >= 22000 to Windows 11,
// which still reports itself as 10.0.
func windowsDisplayVersion(kernel, fallback string) string {
	parts := strings.Split(kernel, ".")
	if len(parts) < 3 {
		return fallback
	}
	build, err := strconv.Atoi(parts[2])
	if err != nil {
		return fallback
	}
	if parts[0] == "10" && parts[1] == "0" && build >= 22000 {
		return "11.0." + parts[2]
	}
	return kernel
}
