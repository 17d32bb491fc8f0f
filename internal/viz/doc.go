// Package viz renders a closed loop live in the terminal.
//
// [Model] is a Bubble Tea model that steps the plant in real time, sketches
// it on a Braille [Canvas] and plots setpoint, feedback and correction with
// asciigraph. Controller and plant parameters can be retuned while the loop
// runs.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single step while paused
//	R     - Reset plant, controller and parameters
//	Tab   - Select parameter
//	↑/↓   - Retune selected parameter
//	T     - Cycle color themes
//	?     - Show help
package viz
