package util

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ja7ad/tegramon/pkg/types"
)

// SystemSummary describes the machine for the startup banner. Fields that
// cannot be read are reported as "unknown".
func SystemSummary() (hostname, platform, kernel, cpus, memory string) {
	hostname, platform, kernel, memory = "unknown", "unknown", "unknown", "unknown"
	cpus = fmt.Sprintf("%d", runtime.NumCPU())

	if info, err := host.Info(); err == nil {
		hostname = info.Hostname
		platform = fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
		kernel = info.KernelVersion
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memory = types.Bytes(vm.Total).Humanized()
	}
	return hostname, platform, kernel, cpus, memory
}
