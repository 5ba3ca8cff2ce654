// Package app wires the application together: configuration, logging, the
// source provider, and the engine, plus the CLI-facing run loop that prints
// a graph's eager exports and its registry of still-deferred modules.
package app
