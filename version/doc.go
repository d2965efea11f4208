// Package version exposes build information for pingstream binaries.
//
// Values are injected at link time and fall back to the VCS stamp Go embeds
// in the binary:
//
//	go build -ldflags "-X github.com/kbukum/pingstream/version.Version=1.0.0" ./cmd/pingserver
package version
