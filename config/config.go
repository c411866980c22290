package config

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file. The schema covers the fluid
// solver, the adaptive refinement controls and the FSI coupling driver.
type Parameters struct {
	Title     string  `yaml:"Title"`
	Dimension int     `yaml:"Dimension"`
	Viscosity float64 `yaml:"Viscosity"` // Dynamic viscosity mu
	Rho       float64 `yaml:"Rho"`       // Fluid density
	Gamma     float64 `yaml:"Gamma"`     // Grad-Div stabilization coefficient
	Degree    int     `yaml:"Degree"`    // Pressure degree; velocity runs one higher

	DeltaT  float64 `yaml:"DeltaT"`
	EndTime float64 `yaml:"EndTime"`

	Tolerance    float64 `yaml:"Tolerance"`
	MaxIteration int     `yaml:"MaxIteration"`

	RefinementInterval int `yaml:"RefinementInterval"` // Every N steps; 0 disables
	OutputInterval     int `yaml:"OutputInterval"`     // Every N steps; 0 disables
	MinRefinementLevel int `yaml:"MinRefinementLevel"`
	MaxRefinementLevel int `yaml:"MaxRefinementLevel"`

	// Channel mesh extents for the built-in rectangle provider.
	NX     int     `yaml:"NX"`
	NY     int     `yaml:"NY"`
	Width  float64 `yaml:"Width"`
	Height float64 `yaml:"Height"`

	UMax float64 `yaml:"UMax"` // Peak of the parabolic inflow profile

	NumProcs int `yaml:"NumProcs"` // SPMD ranks for the distributed variant

	// Immersed solid for the FSI driver: a rigid disk with prescribed motion.
	SolidCenterX   float64 `yaml:"SolidCenterX"`
	SolidCenterY   float64 `yaml:"SolidCenterY"`
	SolidRadius    float64 `yaml:"SolidRadius"`
	SolidAmplitude float64 `yaml:"SolidAmplitude"`
	SolidFrequency float64 `yaml:"SolidFrequency"`
}

func (p *Parameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, p); err != nil {
		return err
	}
	return p.Validate()
}

// Validate checks the startup preconditions. Violations here are fatal and
// not recoverable, so callers are expected to abort on error.
func (p *Parameters) Validate() error {
	if p.Dimension != 2 {
		return fmt.Errorf("unsupported spatial dimension: %d", p.Dimension)
	}
	if p.Viscosity <= 0 {
		return fmt.Errorf("viscosity must be positive, got %v", p.Viscosity)
	}
	if p.Rho <= 0 {
		return fmt.Errorf("density must be positive, got %v", p.Rho)
	}
	if p.Gamma < 0 {
		return fmt.Errorf("grad-div coefficient must be non-negative, got %v", p.Gamma)
	}
	if p.Degree < 1 {
		return fmt.Errorf("pressure degree must be at least 1, got %d", p.Degree)
	}
	if p.DeltaT <= 0 || p.EndTime <= 0 {
		return fmt.Errorf("time step and end time must be positive, got dt=%v end=%v",
			p.DeltaT, p.EndTime)
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("solver tolerance must be positive, got %v", p.Tolerance)
	}
	if p.MaxIteration < 0 {
		return fmt.Errorf("max iteration count must be non-negative, got %d", p.MaxIteration)
	}
	if p.NX < 1 || p.NY < 1 {
		return fmt.Errorf("mesh subdivisions must be at least 1x1, got %dx%d", p.NX, p.NY)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("mesh extents must be positive, got %vx%v", p.Width, p.Height)
	}
	if p.MaxRefinementLevel < p.MinRefinementLevel {
		return fmt.Errorf("max refinement level %d below min %d",
			p.MaxRefinementLevel, p.MinRefinementLevel)
	}
	if p.NumProcs < 0 {
		return fmt.Errorf("NumProcs must be non-negative, got %d", p.NumProcs)
	}
	return nil
}

func (p *Parameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", p.Title)
	fmt.Printf("[%d]\t\t\t= Dimension\n", p.Dimension)
	fmt.Printf("%8.5f\t\t= Viscosity\n", p.Viscosity)
	fmt.Printf("%8.5f\t\t= Rho\n", p.Rho)
	fmt.Printf("%8.5f\t\t= Gamma\n", p.Gamma)
	fmt.Printf("[%d]\t\t\t= Degree\n", p.Degree)
	fmt.Printf("%8.5f\t\t= DeltaT\n", p.DeltaT)
	fmt.Printf("%8.5f\t\t= EndTime\n", p.EndTime)
	fmt.Printf("%8.2e\t\t= Tolerance\n", p.Tolerance)
	fmt.Printf("[%d]\t\t\t= MaxIteration\n", p.MaxIteration)
	fmt.Printf("[%d]\t\t\t= RefinementInterval\n", p.RefinementInterval)
	fmt.Printf("[%d]\t\t\t= OutputInterval\n", p.OutputInterval)
	fmt.Printf("[%d x %d]\t\t= Mesh subdivisions\n", p.NX, p.NY)
	fmt.Printf("%8.5f x %.5f\t= Mesh extents\n", p.Width, p.Height)
	fmt.Printf("%8.5f\t\t= UMax\n", p.UMax)
}

// Channel returns the defaults used by the plane-channel test problem.
func Channel() *Parameters {
	return &Parameters{
		Title:              "Channel",
		Dimension:          2,
		Viscosity:          1e-3,
		Rho:                1,
		Gamma:              1,
		Degree:             1,
		DeltaT:             1e-2,
		EndTime:            1,
		Tolerance:          1e-10,
		MaxIteration:       200,
		RefinementInterval: 0,
		OutputInterval:     0,
		MinRefinementLevel: 0,
		MaxRefinementLevel: 2,
		NX:                 8,
		NY:                 4,
		Width:              2,
		Height:             1,
		UMax:               1,
	}
}
