// Package progress tracks the lifecycle of the current command so the operator server can
// report it. Emitters push Events; the Tracker folds them into a Status snapshot.
package progress
