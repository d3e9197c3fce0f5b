// Package integrators implements the step integrators that advance a DAE
// system by one time step.
//
// Every integrator satisfies [Integrator]: it is a [dynamo.Problem] the
// nonlinear solver iterates on, plus an Advance entry point the outer driver
// calls once per step. The family is closed:
//
//   - [DerivativeSolver]: coefficient search for consistent initial derivatives
//   - [Step1Integrator], [Step2Integrator]: predictor-corrector multistep methods
//     sharing the [StepN] residual, Jacobian and update machinery
//   - [InverseDynamicsStepSolver]: position, velocity, acceleration and force
//     phases solved in sequence
//
// The matrix-free Jacobian-vector product and the modified residual test
// scale are strategies shared by composition, not inheritance.
//
// State buffers passed to Advance are borrowed for the duration of the call
// only. Integrators are not safe for concurrent use.
package integrators
