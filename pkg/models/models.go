package models

// Config holds the agent configuration
type Config struct {
	ReposDir         string `mapstructure:"repos_dir" json:"repos_dir"`
	ProjectDir       string `mapstructure:"project_dir" json:"project_dir"`
	PodBinary        string `mapstructure:"pod_binary" json:"pod_binary"`
	LogFile          string `mapstructure:"log_file" json:"log_file"`
	LogLevel         string `mapstructure:"log_level" json:"log_level"`
	ListenAddr       string `mapstructure:"listen_addr" json:"listen_addr"`
	CDNTimeout       int    `mapstructure:"cdn_timeout" json:"cdn_timeout"`
	UpdateTimeout    int    `mapstructure:"update_timeout" json:"update_timeout"`
	DiscoveryTimeout int    `mapstructure:"discovery_timeout" json:"discovery_timeout"`
	PruneOnDiscovery bool   `mapstructure:"prune_on_discovery" json:"prune_on_discovery"`
	SkipSSLVerify    bool   `mapstructure:"skip_ssl_verify" json:"skip_ssl_verify"`
}

// RepoKind identifies how a source repository is stored locally
type RepoKind string

const (
	RepoKindGit RepoKind = "git"
	RepoKindCDN RepoKind = "cdn"
)

// SourceRepo is one remote specification index known to the agent.
//
// Address is the identity of the repo; every other field may be refreshed
// by a later discovery.
type SourceRepo struct {
	Address        string   `json:"address"`
	Name           string   `json:"name"`
	DisplayName    string   `json:"displayName"`
	DisplayAddress string   `json:"displayAddress"`
	IsDefault      bool     `json:"isDefault"`
	IsUpdating     bool     `json:"isUpdating"`
	Kind           RepoKind `json:"kind"`
	Path           string   `json:"path,omitempty"`
	Commit         string   `json:"commit,omitempty"`
}

// Classification is the active/inactive partition of a catalog snapshot
type Classification struct {
	Active   []SourceRepo `json:"active"`
	Inactive []SourceRepo `json:"inactive"`
}

// ProjectClassification is a Classification for one project directory.
// Unresolved lists declared addresses that no known repo matches. Locked
// lists the Podfile.lock repos and is informational only.
type ProjectClassification struct {
	Project    string       `json:"project"`
	Declared   []string     `json:"declared"`
	Active     []SourceRepo `json:"active"`
	Inactive   []SourceRepo `json:"inactive"`
	Unresolved []string     `json:"unresolved"`
	Locked     []string     `json:"locked"`
}

// HostInfo holds the platform details reported by diagnostics
type HostInfo struct {
	Hostname        string `json:"hostname"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelArch      string `json:"kernelArch"`
	Uptime          uint64 `json:"uptime"`
	PodVersion      string `json:"podVersion,omitempty"`
	GitVersion      string `json:"gitVersion,omitempty"`
}

// CDNStatus is the response of a CDN index probe
type CDNStatus struct {
	Address     string `json:"address"`
	Reachable   bool   `json:"reachable"`
	StatusCode  int    `json:"statusCode"`
	MinVersion  string `json:"min,omitempty"`
	LastVersion string `json:"last,omitempty"`
}

// UpdateResponse is returned by the status API when an update is accepted
type UpdateResponse struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of a failed status API request
type ErrorResponse struct {
	Error string `json:"error"`
}
