package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// SystemMetricsTracker samples host CPU and memory usage
type SystemMetricsTracker struct {
	startTime time.Time

	// sampling window for cpu.Percent
	cpuWindow time.Duration
}

// NewSystemMetrics creates a new SystemMetricsTracker instance
func NewSystemMetrics() *SystemMetricsTracker {
	return &SystemMetricsTracker{
		startTime: time.Now(),
		cpuWindow: time.Second,
	}
}

// GetUptime returns the process uptime in seconds
func (sm *SystemMetricsTracker) GetUptime() int64 {
	return int64(time.Since(sm.startTime).Seconds())
}

// GetCPUUsage returns current CPU usage percentage
func (sm *SystemMetricsTracker) GetCPUUsage() (float64, error) {
	percentages, err := cpu.Percent(sm.cpuWindow, false)
	if err != nil || len(percentages) == 0 {
		return 0.0, err
	}
	return percentages[0], nil
}

// GetMemoryUsage returns the used share of virtual memory in percent
func (sm *SystemMetricsTracker) GetMemoryUsage() (float64, error) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return 0.0, err
	}
	return memInfo.UsedPercent, nil
}

// Run samples every interval and hands the readings to update until ctx
// ends. done is closed on return.
func (sm *SystemMetricsTracker) Run(ctx context.Context, interval time.Duration, update func(cpuUsage, memoryUsage float64), done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sm.sample(update)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (sm *SystemMetricsTracker) sample(update func(cpuUsage, memoryUsage float64)) {
	cpuUsage, err := sm.GetCPUUsage()
	if err != nil {
		logrus.WithError(err).Debug("Failed to sample CPU usage")
	}
	memUsage, err := sm.GetMemoryUsage()
	if err != nil {
		logrus.WithError(err).Debug("Failed to sample memory usage")
	}
	update(cpuUsage, memUsage)
}
