package config

var Presets = map[string]map[string]*Config{
	"spring_mass": {
		"bounce": {
			Model: "spring_mass", Method: "cn", Dt: 0.01, Duration: 20.0,
			InitState: InitStateConfig{Pos: 2.0, Masses: 1},
		},
		"stiff": {
			Model: "spring_mass", Method: "euler", Dt: 0.05, Duration: 10.0,
			InitState: InitStateConfig{Pos: 1.0, Vel: 5.0, Masses: 1},
		},
	},
	"chain": {
		"bdf2": {
			Model: "chain", Method: "ms", Rho: 0, Dt: 0.01, Duration: 10.0,
			InitState: InitStateConfig{Pos: 1.0, Masses: 5},
		},
		"damped": {
			Model: "chain", Method: "ms", Rho: 0.6, Dt: 0.02, Duration: 20.0,
			InitState: InitStateConfig{Pos: 1.0, Masses: 3},
		},
	},
	"constrained_mass": {
		"tracking": {
			Model: "constrained_mass", Method: "cn", Dt: 0.01, Duration: 5.0,
		},
	},
	"pendulum": {
		"small": {
			Model: "pendulum", Method: "euler", Dt: 0.005, Duration: 10.0,
			InitState: InitStateConfig{Theta: 0.2},
		},
		"large": {
			Model: "pendulum", Method: "ms", Rho: 0.6, Dt: 0.005, Duration: 10.0,
			InitState: InitStateConfig{Theta: 2.5},
		},
	},
	"double_pendulum": {
		"gentle": {
			Model: "double_pendulum", Method: "cn", Dt: 0.01, Duration: 30.0,
			InitState: InitStateConfig{Theta: 0.3},
		},
		"chaos": {
			Model: "double_pendulum", Method: "cn", Nonlinear: "nk", Dt: 0.005, Duration: 30.0,
			InitState: InitStateConfig{Theta: 3.0},
		},
	},
	"van_der_pol": {
		"stiff": {
			Model: "van_der_pol", Method: "ms", Rho: 0.6, Dt: 0.01, Duration: 300.0,
			InitState: InitStateConfig{Pos: 2, Mu: 100},
		},
	},
	"prescribed_chain": {
		"sine": {
			Model: "prescribed_chain", Dt: 0.01, Duration: 5.0,
			InitState: InitStateConfig{Masses: 3},
		},
	},
}

// GetPreset returns the named preset on top of the defaults, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return p.Over(DefaultConfig())
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}

// Over returns a copy of base with the non-zero fields of c applied.
func (c *Config) Over(base *Config) *Config {
	out := *base
	if c.Model != "" {
		out.Model = c.Model
	}
	if c.Method != "" {
		out.Method = c.Method
	}
	if c.Method == "ms" {
		out.Rho = c.Rho
	}
	if c.Nonlinear != "" {
		out.Nonlinear = c.Nonlinear
	}
	if c.Dt != 0 {
		out.Dt = c.Dt
	}
	if c.Duration != 0 {
		out.Duration = c.Duration
	}
	if c.InitState != (InitStateConfig{}) {
		out.InitState = c.InitState
	}
	return &out
}
