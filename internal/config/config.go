package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/sim"
)

const (
	DefaultDt          = 0.01
	DefaultDuration    = 10.0
	DefaultMaxIters    = 20
	DefaultTol         = 1e-8
	DefaultRho         = 0.6
	DefaultTau         = 1e-7
	DefaultCoef        = 1e-6
	DefaultMaxIterCoef = 3
	DefaultFactorCoef  = 10.0

	// EnvPrefix prefixes the environment overrides, e.g. STEPSOL_DT or
	// STEPSOL_DERIVATIVES_TOL.
	EnvPrefix = "STEPSOL"
)

type Config struct {
	Model            string            `yaml:"model" mapstructure:"model"`
	Method           string            `yaml:"method" mapstructure:"method"`
	Rho              float64           `yaml:"rho" mapstructure:"rho"`
	Nonlinear        string            `yaml:"nonlinear" mapstructure:"nonlinear"`
	Dt               float64           `yaml:"dt" mapstructure:"dt"`
	Duration         float64           `yaml:"duration" mapstructure:"duration"`
	MaxIters         int               `yaml:"max_iters" mapstructure:"max_iters"`
	Tol              float64           `yaml:"tol" mapstructure:"tol"`
	SolTol           float64           `yaml:"sol_tol" mapstructure:"sol_tol"`
	ModResTest       bool              `yaml:"mod_res_test" mapstructure:"mod_res_test"`
	DivergenceCheck  float64           `yaml:"divergence_check" mapstructure:"divergence_check"`
	ResidualScale    float64           `yaml:"residual_scale" mapstructure:"residual_scale"`
	Tau              float64           `yaml:"tau" mapstructure:"tau"`
	FDJacobian       bool              `yaml:"fd_jacobian" mapstructure:"fd_jacobian"`
	OutputPrediction bool              `yaml:"output_prediction" mapstructure:"output_prediction"`
	Derivatives      DerivativesConfig `yaml:"derivatives" mapstructure:"derivatives"`
	ProblemType      string            `yaml:"problem_type" mapstructure:"problem_type"`
	Seed             int64             `yaml:"seed" mapstructure:"seed"`
	InitState        InitStateConfig   `yaml:"init_state" mapstructure:"init_state"`
}

// DerivativesConfig controls the initial derivative solve.
type DerivativesConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Tol         float64 `yaml:"tol" mapstructure:"tol"`
	SolTol      float64 `yaml:"sol_tol" mapstructure:"sol_tol"`
	MaxIters    int     `yaml:"max_iters" mapstructure:"max_iters"`
	Coef        float64 `yaml:"coef" mapstructure:"coef"`
	MaxIterCoef int     `yaml:"max_iter_coef" mapstructure:"max_iter_coef"`
	FactorCoef  float64 `yaml:"factor_coef" mapstructure:"factor_coef"`
}

type InitStateConfig struct {
	Pos    float64 `yaml:"pos" mapstructure:"pos"`
	Vel    float64 `yaml:"vel" mapstructure:"vel"`
	Theta  float64 `yaml:"theta" mapstructure:"theta"`
	Masses int     `yaml:"masses" mapstructure:"masses"`
	Mu     float64 `yaml:"mu,omitempty" mapstructure:"mu"` // van der Pol damping
}

func DefaultConfig() *Config {
	return &Config{
		Model:     "spring_mass",
		Method:    "cn",
		Rho:       DefaultRho,
		Nonlinear: "newton",
		Dt:        DefaultDt,
		Duration:  DefaultDuration,
		MaxIters:  DefaultMaxIters,
		Tol:       DefaultTol,
		Tau:       DefaultTau,
		Derivatives: DerivativesConfig{
			Tol:         DefaultTol,
			MaxIters:    DefaultMaxIters,
			Coef:        DefaultCoef,
			MaxIterCoef: DefaultMaxIterCoef,
			FactorCoef:  DefaultFactorCoef,
		},
		ProblemType: integrators.FullyActuatedCollocated.String(),
		InitState: InitStateConfig{
			Pos:    1,
			Masses: 1,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides cfg with STEPSOL_* environment variables. Nested keys
// join with an underscore.
func ApplyEnv(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "env overrides")
	}
	return errors.Wrap(v.Unmarshal(cfg), "env overrides")
}

func (c *Config) Validate() error {
	switch {
	case c.Dt <= 0:
		return errors.Errorf("dt must be positive, got %g", c.Dt)
	case c.Duration <= 0:
		return errors.Errorf("duration must be positive, got %g", c.Duration)
	case c.MaxIters < 0:
		return errors.Errorf("max_iters must not be negative, got %d", c.MaxIters)
	case c.Rho < 0 || c.Rho > 1:
		return errors.Errorf("rho must lie in [0, 1], got %g", c.Rho)
	case c.ResidualScale < 0:
		return errors.Errorf("residual_scale must not be negative, got %g", c.ResidualScale)
	}
	return nil
}

func (c *Config) IntegratorParams() integrators.Params {
	return integrators.Params{
		MaxIters:   c.MaxIters,
		Tol:        c.Tol,
		SolTol:     c.SolTol,
		ModResTest: c.ModResTest,
	}
}

func (c *Config) DerivativeParams() integrators.DerivativeParams {
	d := c.Derivatives
	return integrators.DerivativeParams{
		Params: integrators.Params{
			MaxIters:   d.MaxIters,
			Tol:        d.Tol,
			SolTol:     d.SolTol,
			ModResTest: c.ModResTest,
		},
		Coef:        d.Coef,
		MaxIterCoef: d.MaxIterCoef,
		FactorCoef:  d.FactorCoef,
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Derivatives:   c.Derivatives.Enabled,
		ValidateState: true,
	}
}
