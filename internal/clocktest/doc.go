// Package clocktest provides a manually advanced clock whose timers fire
// synchronously, in deadline order, on the goroutine that calls Advance.
package clocktest
