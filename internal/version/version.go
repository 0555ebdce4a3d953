package version

// Version is overridden at build time with -ldflags "-X github.com/bnema/kmlx/internal/version.Version=...".
var Version = "dev"
