package model

const (
	// DefaultIOWorkers is the fetch stage bound of the baseline design
	DefaultIOWorkers = 40
	// DefaultCPUWorkers is the transform stage bound
	DefaultCPUWorkers = 8
	// MaxCPUWorkers is the hard ceiling on concurrent transforms
	MaxCPUWorkers = 8
)

// Workers defines the concurrency bound of each stage
type Workers struct {
	IO  int `json:"io" yaml:"io_workers"`
	CPU int `json:"cpu" yaml:"cpu_workers"`
}

// ClampCPU returns n limited to [1, MaxCPUWorkers]; non-positive values map to the default
func ClampCPU(n int) int {
	if n <= 0 {
		return DefaultCPUWorkers
	}
	if n > MaxCPUWorkers {
		return MaxCPUWorkers
	}
	return n
}
