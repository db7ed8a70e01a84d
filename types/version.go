// Package types defines the shared result vocabulary of the flint CLI.
//
//nolint:revive // types is a common Go package naming convention
package types

// Version is the canonical project version.
const Version = "0.4.0"
