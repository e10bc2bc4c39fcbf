package version

// Version is the agent version, overridden at build time with -ldflags
var Version = "0.3.0"
