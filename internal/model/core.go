package model

// Mode selects how the fetch and transform stages are chained
type Mode string

const (
	// ModeSequential runs every fetch before any transform starts
	ModeSequential Mode = "sequential"
	// ModePipelined starts an item's transform as soon as its fetch succeeds
	ModePipelined Mode = "pipelined"
)

// Source describes where the numbered images live and how they are named
type Source struct {
	BaseURL     string `json:"baseUrl" yaml:"source_base_url"`
	FilePattern string `json:"filePattern" yaml:"file_pattern"` // e.g. %03d.png
}

// Output defines where raw and transformed images are written
type Output struct {
	RawDir       string `json:"rawDir" yaml:"raw_dir"`
	ProcessedDir string `json:"processedDir" yaml:"processed_dir"`
}

// FetchPolicy defines the per-item retry and timeout policy of the fetch stage
type FetchPolicy struct {
	Timeout           string  `json:"timeout" yaml:"fetch_timeout"` // e.g. "10s"
	MaxAttempts       int     `json:"maxAttempts" yaml:"max_fetch_attempts"`
	Backoff           string  `json:"backoff" yaml:"retry_backoff"` // e.g. "1s"
	BackoffMultiplier float64 `json:"backoffMultiplier" yaml:"retry_backoff_multiplier"`
	MaxBackoff        string  `json:"maxBackoff" yaml:"retry_max_backoff"`
}

// TransformSettings holds the parameters of the fixed transform sequence
type TransformSettings struct {
	BlurRadius       float64 `json:"blurRadius" yaml:"blur_radius"`
	SecondBlurRadius float64 `json:"secondBlurRadius" yaml:"second_blur_radius"`
	ContrastFactor   float64 `json:"contrastFactor" yaml:"contrast_factor"`
	UpscaleFactor    int     `json:"upscaleFactor" yaml:"upscale_factor"`
	Quality          int     `json:"quality" yaml:"quality"`
	Optimize         bool    `json:"optimize" yaml:"optimize"`
	Timeout          string  `json:"timeout" yaml:"transform_timeout"` // per item, empty means none
}

// BatchSpec is the full configuration of one batch run.
// It is the body of POST /api/v1/batches and the shape of the YAML config file.
type BatchSpec struct {
	ItemCount      int               `json:"itemCount" yaml:"item_count"`
	Mode           Mode              `json:"mode" yaml:"mode"`
	Workers        Workers           `json:"workers" yaml:"workers"`
	Source         Source            `json:"source" yaml:"source"`
	Output         Output            `json:"output" yaml:"output"`
	Fetch          FetchPolicy       `json:"fetch" yaml:"fetch"`
	Transform      TransformSettings `json:"transform" yaml:"transform"`
	ReportInterval int               `json:"reportInterval" yaml:"report_interval"`
}
