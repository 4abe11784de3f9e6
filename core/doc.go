// Package core defines the shared content model (role-based Content with
// heterogeneous Parts), the Event type runtimes emit while driving a research
// run, and the ToolContext passed to tool implementations.
package core
