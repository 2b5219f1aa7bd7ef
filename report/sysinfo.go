package report

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

type CPUInfo struct {
	Cores     int32   `json:"cores" yaml:"cores"`
	ModelName string  `json:"modelName" yaml:"modelName"`
	Mhz       float64 `json:"mhz" yaml:"mhz"`
}

type MemoryInfo struct {
	Total       uint64  `json:"total" yaml:"total"`
	Available   uint64  `json:"available" yaml:"available"`
	UsedPercent float64 `json:"usedPercent" yaml:"usedPercent"`
}

type HostInfo struct {
	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform" yaml:"platform"`
	PlatformVersion string `json:"platformVersion" yaml:"platformVersion"`
}

type LoadInfo struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

// SysInfo describes the machine a model was solved on
type SysInfo struct {
	GoVersion string     `json:"goVersion" yaml:"goVersion"`
	NumCPU    int        `json:"numCPU" yaml:"numCPU"`
	CPU       CPUInfo    `json:"cpu" yaml:"cpu"`
	Memory    MemoryInfo `json:"memory" yaml:"memory"`
	Host      HostInfo   `json:"host" yaml:"host"`
	Load      LoadInfo   `json:"load" yaml:"load"`
}

func getCPUInfo() (CPUInfo, error) {
	infos, err := cpu.Info()
	if err != nil {
		return CPUInfo{}, errors.Wrap(err, "failed to get CPU info")
	}
	if len(infos) == 0 {
		return CPUInfo{}, nil
	}
	return CPUInfo{
		Cores:     infos[0].Cores,
		ModelName: infos[0].ModelName,
		Mhz:       infos[0].Mhz,
	}, nil
}

func getMemoryInfo() (MemoryInfo, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, errors.Wrap(err, "failed to get memory info")
	}
	return MemoryInfo{
		Total:       v.Total,
		Available:   v.Available,
		UsedPercent: v.UsedPercent,
	}, nil
}

func getHostInfo() (HostInfo, error) {
	info, err := host.Info()
	if err != nil {
		return HostInfo{}, errors.Wrap(err, "failed to get host info")
	}
	return HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
	}, nil
}

func getLoadInfo() (LoadInfo, error) {
	avg, err := load.Avg()
	if err != nil {
		return LoadInfo{}, errors.Wrap(err, "failed to get system load")
	}
	return LoadInfo{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// CollectSysInfo gathers what it can; a query that fails leaves its
// section zero and is logged
func CollectSysInfo() SysInfo {
	info := SysInfo{GoVersion: runtime.Version(), NumCPU: runtime.NumCPU()}
	var err error
	if info.CPU, err = getCPUInfo(); err != nil {
		log.Warnf("CollectSysInfo: %v", err)
	}
	if info.Memory, err = getMemoryInfo(); err != nil {
		log.Warnf("CollectSysInfo: %v", err)
	}
	if info.Host, err = getHostInfo(); err != nil {
		log.Warnf("CollectSysInfo: %v", err)
	}
	if info.Load, err = getLoadInfo(); err != nil {
		log.Warnf("CollectSysInfo: %v", err)
	}
	return info
}
