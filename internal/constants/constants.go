package constants

// Well-known source repository addresses
const (
	MasterSpecsAddress = "https://github.com/CocoaPods/Specs.git"
	TrunkCDNAddress    = "https://cdn.cocoapods.org/"
)

// Files inside the repos directory and the project directory
const (
	CDNURLFile      = ".url"
	CDNVersionFile  = "CocoaPods-version.yml"
	PodfileName     = "Podfile"
	PodfileLockName = "Podfile.lock"
	TrunkRepoName   = "trunk"
	MasterRepoName  = "master"
	DefaultRemote   = "origin"
	LockfileRepoKey = "SPEC REPOS"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Common error messages
const (
	ErrUnknownValue = "Unknown"
)
