// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing tasks, tool calls and scripted model
// turns, and to capture what a running agent publishes and emits. These
// helpers are intentionally minimal. They are not intended for production
// usage.
package testutil
