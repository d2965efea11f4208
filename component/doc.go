// Package component defines the lifecycle contract shared by the server's
// long-running parts and a registry that starts them in order and stops
// them in reverse.
package component
