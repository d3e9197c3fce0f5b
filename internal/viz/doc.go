// Package viz renders simulation output for the terminal: the styled
// prediction report printed after every prediction when output_prediction
// is set, run summaries, and asciigraph plots of stored trajectories.
package viz
