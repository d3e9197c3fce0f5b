package integrators

import "github.com/san-kum/stepsol/internal/dynamo"

// testScaler computes the modified residual test factor
// 1/(1 + Σ (xp_i·scale_i)²) over the differential DOFs.
type testScaler struct {
	enabled bool
}

func (t testScaler) scale(dofs []dynamo.Dof, xp dynamo.State, s dynamo.Scaler) float64 {
	if !t.enabled || s == nil {
		return 1
	}
	var sum float64
	for i, d := range dofs {
		if i >= len(xp) {
			break
		}
		if d.Order != dynamo.Differential {
			continue
		}
		v := xp[i] * s.ScaleCoef(i)
		sum += v * v
	}
	return 1 / (1 + sum)
}
