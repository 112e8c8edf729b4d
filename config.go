package xval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//////
// Const, vars, types.
//////

// File is a search described in YAML: shared settings, an optional budget
// and a declarative parameter space.
//
// Usage example:
//
//	rate: 3
//	mode: hyperband
//	seed: 42
//	workers: 4
//	budget:
//	  name: epochs
//	  value: 81
//	space:
//	  - name: depth
//	    dist: discrete
//	    values: [2, 4, 8]
//	  - name: lr
//	    dist: loguniform
//	    a: 0.0001
//	    b: 0.1
type File struct {
	Config `yaml:",inline"`

	// Workers selects the dispatcher: 0 runs tasks sequentially, anything
	// above runs them on a Pool of that size.
	Workers int `yaml:"workers"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Budget is the training budget of SHA and Hyperband. A zero value
	// means none was given.
	Budget Budget[float64] `yaml:"budget"`

	// Space declares the parameter space, one entry per dimension.
	Space []DimSpec `yaml:"space"`
}

// DimSpec declares one dimension of a parameter space.
type DimSpec struct {
	Name string `yaml:"name"`

	// Dist is one of discrete, uniform, loguniform or normal.
	Dist string `yaml:"dist"`

	// Values and Probs describe a discrete dimension. Without Probs every
	// value is equally likely.
	Values []any     `yaml:"values,omitempty"`
	Probs  []float64 `yaml:"probs,omitempty"`

	// A and B bound uniform and loguniform dimensions.
	A float64 `yaml:"a,omitempty"`
	B float64 `yaml:"b,omitempty"`

	// Mean and Std parametrize a normal dimension.
	Mean float64 `yaml:"mean,omitempty"`
	Std  float64 `yaml:"std,omitempty"`
}

//////
// Factory.
//////

// LoadConfig loads and parses a search file.
func LoadConfig(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	f, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return f, nil
}

// ParseConfigYAML parses a search file from YAML bytes and validates it.
// Settings missing from data keep their DefaultConfig values.
func ParseConfigYAML(data []byte) (*File, error) {
	f := File{Config: DefaultConfig(), LogLevel: "info"}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &f, nil
}

//////
// Methods.
//////

// SearchConfig returns the search settings with the dispatcher resolved
// from Workers.
func (f *File) SearchConfig() Config {
	cfg := f.Config

	cfg.Dispatcher = Sequential{}
	if f.Workers > 0 {
		cfg.Dispatcher = Pool{MaxGoroutines: f.Workers}
	}

	return cfg
}

// HasBudget reports whether the file declares a budget.
func (f *File) HasBudget() bool { return f.Budget != Budget[float64]{} }

// ParamSpace builds the declared parameter space.
//
// Returns ErrValidation if no dimension is declared or one is invalid.
func (f *File) ParamSpace() (Space, error) {
	if len(f.Space) == 0 {
		return nil, validationf("no space declared")
	}

	ds := make([]Dim, len(f.Space))

	for i, spec := range f.Space {
		d, err := spec.Dim()
		if err != nil {
			return nil, err
		}

		ds[i] = d
	}

	return NewSpace(ds...)
}

// Dim builds the declared dimension.
func (s DimSpec) Dim() (Dim, error) {
	var (
		dist Distribution
		err  error
	)

	switch strings.ToLower(s.Dist) {
	case "discrete":
		if s.Probs == nil {
			dist, err = NewDiscreteUniform(s.Values...)
		} else {
			dist, err = NewDiscrete(s.Values, s.Probs)
		}
	case "uniform":
		dist, err = NewUniform(s.A, s.B)
	case "loguniform":
		dist, err = NewLogUniform(s.A, s.B)
	case "normal":
		dist, err = NewNormal(s.Mean, s.Std)
	default:
		return Dim{}, validationf("dimension %q: unknown distribution %q (must be discrete, uniform, loguniform or normal)", s.Name, s.Dist)
	}

	if err != nil {
		return Dim{}, fmt.Errorf("dimension %q: %w", s.Name, err)
	}

	return P(s.Name, dist), nil
}

func (f *File) validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(f.LogLevel)] {
		return validationf("invalid log_level: %s (must be debug, info, warn, or error)", f.LogLevel)
	}

	if err := checkArms(1, f.Rate); err != nil {
		return err
	}

	if f.Workers < 0 {
		return validationf("workers %d is negative", f.Workers)
	}

	if f.N < 1 || f.NStart < 0 || f.MaxIter < 0 {
		return validationf("n must be positive and nstart, max_iter not negative")
	}

	if !(f.Step > 0) {
		return validationf("step %v is not positive", f.Step)
	}

	if !(f.Temp >= 0) {
		return validationf("temp %v is negative", f.Temp)
	}

	if f.HasBudget() {
		if err := f.Budget.validate(); err != nil {
			return err
		}
	}

	if len(f.Space) > 0 {
		if _, err := f.ParamSpace(); err != nil {
			return err
		}
	}

	return nil
}
