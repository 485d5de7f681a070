// File: cmd/version.go
package cmd

// Version is the release version stamped at build time via
// -ldflags "-X github.com/areino/taegis-detection-analysis/cmd.Version=...".
var Version = "dev"
