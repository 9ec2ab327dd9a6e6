package manifest

// Manifest is the JSON report of a tiff2jp2 run.
type Manifest struct {
	Version     int        `json:"version"`
	GeneratedAt string     `json:"generated_at"`
	Profile     string     `json:"profile"`
	Engine      string     `json:"engine"`
	BuildInfo   *BuildInfo `json:"build_info,omitempty"`
	Images      []Image    `json:"images"`
	Stats       Stats      `json:"stats"`
}

// BuildInfo captures run-time parameters for diagnostics.
type BuildInfo struct {
	Workers int    `json:"workers"` // planarizer row workers
	Threads int    `json:"threads"` // engine thread hint, 0 = all cores
	Vector  string `json:"vector"`  // "swar64" or "scalar"
}

// Status of one input.
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Image describes one input and what became of it.
type Image struct {
	Input      string      `json:"input"`
	Output     string      `json:"output"`
	Status     Status      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	Layout     string      `json:"layout,omitempty"` // e.g. "gray8", "rgb16"
	Resolution *Resolution `json:"resolution,omitempty"`
	Levels     int         `json:"levels,omitempty"`
	InputSize  int64       `json:"input_size"`
	OutputSize int64       `json:"output_size,omitempty"`
	Hash       string      `json:"hash,omitempty"` // xxhash64 of the output, 16 hex chars
	ElapsedMS  int64       `json:"elapsed_ms"`
	ResBox     bool        `json:"res_box"`
	XMP        bool        `json:"xmp"`
	ICC        bool        `json:"icc"`
}

// Resolution is the physical density written into the output.
type Resolution struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Unit string  `json:"unit"`
}

// Stats aggregates run metrics.
type Stats struct {
	TotalImages      int   `json:"total_images"`
	Converted        int   `json:"converted"`
	Skipped          int   `json:"skipped"`
	Failed           int   `json:"failed"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1
