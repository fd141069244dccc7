// Package optimisation contains first-order optimisers over gonum vectors. They are used to update Lagrange
// multipliers, which must remain non-negative; see ProjectNonNegative.
package optimisation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

const (
	DescentName  = "descent"
	NesterovName = "nesterov"
)

// Optimiser updates a vector of parameters from the gradient of the objective.
type Optimiser interface {
	// Update stores the next parameters in out, which may alias parameters, and returns it.
	Update(out, parameters *mat.VecDense, gradient mat.Vector) *mat.VecDense
	// Reset discards any state and prepares the optimiser for n parameters.
	Reset(n int)
}

// New returns the optimiser with the given name. rho is ignored by optimisers without momentum.
func New(name string, eta, rho float64) (Optimiser, error) {
	switch name {
	case DescentName, "":
		return NewDescent(eta)
	case NesterovName:
		return NewNesterov(eta, rho)
	}
	return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
		Name:    "optimiser",
		Value:   name,
		Message: "expected one of descent, nesterov",
	})
}

func checkStepSize(eta float64) error {
	if eta < 0 || math.IsInf(eta, 0) || math.IsNaN(eta) {
		return errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "eta",
			Value:   eta,
			Message: "step size must be finite and non-negative",
		})
	}
	return nil
}

// Descent takes steps of fixed size eta against the gradient.
type Descent struct {
	eta float64
}

func NewDescent(eta float64) (*Descent, error) {
	if err := checkStepSize(eta); err != nil {
		return nil, err
	}
	return &Descent{eta: eta}, nil
}

func (o *Descent) Update(out, p *mat.VecDense, g mat.Vector) *mat.VecDense {
	out.AddScaledVec(p, -o.eta, g)
	return out
}

func (o *Descent) Reset(int) {}

// Nesterov is gradient descent with Nesterov momentum rho.
type Nesterov struct {
	eta      float64
	rho      float64
	velocity *mat.VecDense
}

func NewNesterov(eta, rho float64) (*Nesterov, error) {
	if err := checkStepSize(eta); err != nil {
		return nil, err
	}
	if !(rho >= 0 && rho < 1) {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "rho",
			Value:   rho,
			Message: "momentum must be in [0, 1)",
		})
	}
	return &Nesterov{eta: eta, rho: rho}, nil
}

// Update applies p + rho^2 v - (1+rho) eta g, then advances the velocity to rho v - eta g.
func (o *Nesterov) Update(out, p *mat.VecDense, g mat.Vector) *mat.VecDense {
	if o.velocity == nil || o.velocity.Len() != p.Len() {
		o.Reset(p.Len())
	}
	out.AddScaledVec(p, o.rho*o.rho, o.velocity)
	out.AddScaledVec(out, -(1+o.rho)*o.eta, g)
	o.velocity.ScaleVec(o.rho, o.velocity)
	o.velocity.AddScaledVec(o.velocity, -o.eta, g)
	return out
}

func (o *Nesterov) Reset(n int) {
	o.velocity = nil
	if n > 0 {
		o.velocity = mat.NewVecDense(n, nil)
	}
}

// ProjectNonNegative clamps every negative entry of v to zero in place and returns v.
func ProjectNonNegative(v *mat.VecDense) *mat.VecDense {
	raw := v.RawVector()
	for i := 0; i < raw.N; i++ {
		if x := &raw.Data[i*raw.Inc]; *x < 0 {
			*x = 0
		}
	}
	return v
}
