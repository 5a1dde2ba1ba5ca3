// Package version reports the diarkit build. Values are injected with
// -ldflags and fall back to the VCS stamp embedded by the Go toolchain:
//
//	go build -ldflags "-X github.com/kbukum/diarkit/version.Version=1.4.0" ./cmd/diarkit
package version
