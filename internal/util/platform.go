package util

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var processStart = time.Now()

// Uptime returns how long this process has been running.
func Uptime() time.Duration {
	return time.Since(processStart)
}

// SystemInfo holds information about the host running Pulse.
type SystemInfo struct {
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	GoVersion    string `json:"go_version"`
	CPUModel     string `json:"cpu_model"`
	CPUCores     int    `json:"cpu_cores"`
	TotalMemory  uint64 `json:"total_memory_mb"`
	BootTime     uint64 `json:"boot_time"`
}

// GetSystemInfo gathers static host information.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		info.BootTime = hostInfo.BootTime
	} else {
		info.OS = runtime.GOOS
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / (1024 * 1024)
	}

	return info
}

// ResourceUsage is a point-in-time view of host and process load.
type ResourceUsage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	DiskPercent   float64 `json:"disk_percent"`
	ProcessRSSMB  uint64  `json:"process_rss_mb"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_sec"`
}

// GetResourceUsage samples CPU, memory and disk usage. diskPath selects the
// filesystem to report; an empty path skips the disk sample. Sampling errors
// leave the corresponding fields zero.
func GetResourceUsage(diskPath string) ResourceUsage {
	u := ResourceUsage{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(Uptime().Seconds()),
	}

	if pct, err := GetCPUUsage(); err == nil {
		u.CPUPercent = pct
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		u.MemoryPercent = memInfo.UsedPercent
		u.MemoryUsedMB = memInfo.Used / (1024 * 1024)
	}

	if diskPath != "" {
		if usage, err := disk.Usage(diskPath); err == nil {
			u.DiskPercent = usage.UsedPercent
		}
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			u.ProcessRSSMB = mi.RSS / (1024 * 1024)
		}
	}

	return u
}

// GetCPUUsage returns the current CPU usage percentage.
func GetCPUUsage() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) > 0 {
		return percentages[0], nil
	}
	return 0, nil
}

// FileExists checks if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
