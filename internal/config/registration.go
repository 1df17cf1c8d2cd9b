package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/assay.report/internal/intensity"
	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/spots"
)

// DefaultConfigPath is the path to the canonical registration defaults file.
// This is the single source of truth for all default pipeline values.
const DefaultConfigPath = "config/registration.defaults.json"

// RegistrationConfig is the root configuration for the registration
// pipeline. All fields are optional; the Get* methods fall back to the
// same defaults the domain packages ship, so partial configs are safe.
type RegistrationConfig struct {
	// Grid geometry
	GridRows      *int     `json:"grid_rows,omitempty"`
	GridCols      *int     `json:"grid_cols,omitempty"`
	GridSpacingPx *float64 `json:"grid_spacing_px,omitempty"`

	// FiducialIndexes are row-major grid positions printed as alignment
	// markers. Registration matches only these against detected spots.
	FiducialIndexes []int `json:"fiducial_indexes,omitempty"`

	// Prior widths
	StdXPx      *float64 `json:"std_x_px,omitempty"`
	StdYPx      *float64 `json:"std_y_px,omitempty"`
	StdAngleRad *float64 `json:"std_angle_rad,omitempty"`
	StdScale    *float64 `json:"std_scale,omitempty"`

	// Prior centres for the non-positional parameters
	AngleMeanRad *float64 `json:"angle_mean_rad,omitempty"`
	ScaleMean    *float64 `json:"scale_mean,omitempty"`

	// Particle filter params
	ParticleCount    *int     `json:"particle_count,omitempty"`
	MaxIterations    *int     `json:"max_iterations,omitempty"`
	MeasurementStdPx *float64 `json:"measurement_std_px,omitempty"`
	ConvergenceTol   *float64 `json:"convergence_tol,omitempty"`
	JitterFraction   *float64 `json:"jitter_fraction,omitempty"`
	JitterDecay      *float64 `json:"jitter_decay,omitempty"`

	// Spot detection params
	MinSpotArea *int  `json:"min_spot_area,omitempty"`
	MaxSpotArea *int  `json:"max_spot_area,omitempty"`
	Threshold   *int  `json:"threshold,omitempty"` // 0 = estimate per image
	Invert      *bool `json:"invert,omitempty"`

	// Intensity measurement params
	SpotRadiusPx     *float64 `json:"spot_radius_px,omitempty"`
	CropMarginPx     *float64 `json:"crop_margin_px,omitempty"`
	BackgroundOrder  *int     `json:"background_order,omitempty"`
	BackgroundStride *int     `json:"background_stride,omitempty"`
	ODEpsilon        *float64 `json:"od_epsilon,omitempty"`

	// MaxImageDim downscales input images whose longest side exceeds it.
	// Zero disables scaling.
	MaxImageDim *int `json:"max_image_dim,omitempty"`
}

// EmptyRegistrationConfig returns a RegistrationConfig with all fields nil.
func EmptyRegistrationConfig() *RegistrationConfig {
	return &RegistrationConfig{}
}

// LoadRegistrationConfig loads a RegistrationConfig from a JSON file.
// The file must have a .json extension and be under the max file size.
// Fields omitted from the JSON keep their defaults.
func LoadRegistrationConfig(path string) (*RegistrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRegistrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches from the current directory up through common parents. Panics
// if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RegistrationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRegistrationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks set fields against the same constraints the domain
// packages enforce, so bad files fail at load rather than mid-run.
func (c *RegistrationConfig) Validate() error {
	if err := c.GetGridSpec().Validate(); err != nil {
		return err
	}
	if err := c.GetNoiseStds().Validate(); err != nil {
		return err
	}
	if err := c.GetFilterConfig(0).Validate(); err != nil {
		return err
	}

	spec := c.GetGridSpec()
	for _, idx := range c.FiducialIndexes {
		if idx < 0 || idx >= spec.Size() {
			return fmt.Errorf("fiducial index %d outside %dx%d grid", idx, spec.Rows, spec.Cols)
		}
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be in [0, 255], got %d", *c.Threshold)
	}
	if c.MinSpotArea != nil && *c.MinSpotArea < 1 {
		return fmt.Errorf("min_spot_area must be at least 1, got %d", *c.MinSpotArea)
	}
	if c.SpotRadiusPx != nil && *c.SpotRadiusPx <= 0 {
		return fmt.Errorf("spot_radius_px must be positive, got %f", *c.SpotRadiusPx)
	}
	if c.BackgroundOrder != nil && (*c.BackgroundOrder < 1 || *c.BackgroundOrder > 3) {
		return fmt.Errorf("background_order must be 1, 2 or 3, got %d", *c.BackgroundOrder)
	}
	if c.BackgroundStride != nil && *c.BackgroundStride < 1 {
		return fmt.Errorf("background_stride must be at least 1, got %d", *c.BackgroundStride)
	}
	if c.MaxImageDim != nil && *c.MaxImageDim < 0 {
		return fmt.Errorf("max_image_dim must be non-negative, got %d", *c.MaxImageDim)
	}
	return nil
}

// GetGridSpec returns the grid geometry or the stock 6x6 layout.
func (c *RegistrationConfig) GetGridSpec() register.GridSpec {
	spec := register.GridSpec{Rows: 6, Cols: 6, Spacing: 82}
	if c.GridRows != nil {
		spec.Rows = *c.GridRows
	}
	if c.GridCols != nil {
		spec.Cols = *c.GridCols
	}
	if c.GridSpacingPx != nil {
		spec.Spacing = *c.GridSpacingPx
	}
	return spec
}

// GetFiducialIndexes returns the fiducial positions or the stock corner
// pattern for the 6x6 layout.
func (c *RegistrationConfig) GetFiducialIndexes() []int {
	if len(c.FiducialIndexes) == 0 {
		return []int{0, 5, 6, 30, 35}
	}
	out := make([]int, len(c.FiducialIndexes))
	copy(out, c.FiducialIndexes)
	return out
}

// GetNoiseStds returns the prior widths with any overrides applied.
func (c *RegistrationConfig) GetNoiseStds() register.NoiseStds {
	stds := register.DefaultNoiseStds()
	if c.StdXPx != nil {
		stds.X = *c.StdXPx
	}
	if c.StdYPx != nil {
		stds.Y = *c.StdYPx
	}
	if c.StdAngleRad != nil {
		stds.Angle = *c.StdAngleRad
	}
	if c.StdScale != nil {
		stds.Scale = *c.StdScale
	}
	return stds
}

// GetPrior builds the sampling prior centred on mean.
func (c *RegistrationConfig) GetPrior(mean register.Point) register.Prior {
	prior := register.DefaultPrior(mean)
	prior.Stds = c.GetNoiseStds()
	if c.AngleMeanRad != nil {
		prior.AngleMean = *c.AngleMeanRad
	}
	if c.ScaleMean != nil {
		prior.ScaleMean = *c.ScaleMean
	}
	return prior
}

// GetFilterConfig returns the particle filter configuration with the given
// seed and any overrides applied.
func (c *RegistrationConfig) GetFilterConfig(seed uint64) register.FilterConfig {
	cfg := register.DefaultFilterConfig()
	cfg.Seed = seed
	if c.ParticleCount != nil {
		cfg.ParticleCount = *c.ParticleCount
	}
	if c.MaxIterations != nil {
		cfg.MaxIterations = *c.MaxIterations
	}
	if c.MeasurementStdPx != nil {
		cfg.MeasurementStd = *c.MeasurementStdPx
	}
	if c.ConvergenceTol != nil {
		cfg.ConvergenceTol = *c.ConvergenceTol
	}
	if c.JitterFraction != nil {
		cfg.JitterFraction = *c.JitterFraction
	}
	if c.JitterDecay != nil {
		cfg.JitterDecay = *c.JitterDecay
	}
	return cfg
}

// GetDetectConfig returns the spot detection configuration.
func (c *RegistrationConfig) GetDetectConfig() spots.DetectConfig {
	cfg := spots.DefaultDetectConfig()
	if c.MinSpotArea != nil {
		cfg.MinArea = *c.MinSpotArea
	}
	if c.MaxSpotArea != nil {
		cfg.MaxArea = *c.MaxSpotArea
	}
	if c.Threshold != nil {
		cfg.Threshold = uint8(*c.Threshold)
	}
	if c.Invert != nil {
		cfg.Invert = *c.Invert
	}
	return cfg
}

// GetMeasureConfig returns the intensity measurement configuration.
func (c *RegistrationConfig) GetMeasureConfig() intensity.MeasureConfig {
	cfg := intensity.DefaultMeasureConfig()
	if c.SpotRadiusPx != nil {
		cfg.SpotRadius = *c.SpotRadiusPx
	}
	if c.CropMarginPx != nil {
		cfg.Margin = *c.CropMarginPx
	}
	if c.BackgroundOrder != nil {
		cfg.BackgroundOrder = *c.BackgroundOrder
	}
	if c.BackgroundStride != nil {
		cfg.BackgroundStride = *c.BackgroundStride
	}
	if c.ODEpsilon != nil {
		cfg.ODEpsilon = *c.ODEpsilon
	}
	return cfg
}

// GetMaxImageDim returns the downscale cap. Zero means never scale.
func (c *RegistrationConfig) GetMaxImageDim() int {
	if c.MaxImageDim == nil {
		return 0
	}
	return *c.MaxImageDim
}
