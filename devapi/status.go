package devapi

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// SystemStatus is the aggregate shown on the operator dashboard.
type SystemStatus struct {
	CatalogTypes struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"catalog_types"`
	Catalogs struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"catalogs"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus counts the catalog data and samples host memory.
func CollectSystemStatus(ctx context.Context, types CatalogTypeRepository, catalogs CatalogRepository, startedAt time.Time) (SystemStatus, error) {
	var st SystemStatus

	ts, err := types.List(ctx)
	if err != nil {
		return st, err
	}
	st.CatalogTypes.Total = len(ts)
	for _, t := range ts {
		if t.Active {
			st.CatalogTypes.Active++
		}
	}

	cs, err := catalogs.List(ctx)
	if err != nil {
		return st, err
	}
	st.Catalogs.Total = len(cs)
	for _, c := range cs {
		if c.Active {
			st.Catalogs.Active++
		}
	}

	st.Memory.UsedBytes, st.Memory.TotalBytes = readMemInfo()
	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st, nil
}

// readMemInfo returns used and total bytes from /proc/meminfo, or zeros
// where it is unavailable.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotal = parseKiBLine(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal == 0 {
		return 0, 0
	}
	if memAvailable <= memTotal {
		used = memTotal - memAvailable
	}
	return used * 1024, memTotal * 1024
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
