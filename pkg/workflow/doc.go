// Package workflow contains the control core of the scientific workflow
// service: the plan and result data model, step argument resolution, the
// step-advance runner, and the orchestrator state machine that sequences
// planning, review, execution, and reporting.
//
// The defining property of the design is that a workflow always
// terminates. Every failure mode is captured into a step result or a
// terminal status; nothing propagates out of the control loop as an error.
package workflow
