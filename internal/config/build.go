package config

// Build metadata set by the linker, for example:
//
//	go build -ldflags "-X inappkit/internal/config.version=1.2.3 \
//	    -X inappkit/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X inappkit/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/inapp-agent
//
// Local builds keep the placeholders.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
