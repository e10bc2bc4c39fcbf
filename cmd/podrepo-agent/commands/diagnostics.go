package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"podrepo-agent/internal/constants"
	"podrepo-agent/internal/system"
	"podrepo-agent/internal/version"
	"podrepo-agent/pkg/models"

	"github.com/spf13/cobra"
)

// diagnosticsCmd reports the host, toolchain and CDN reachability
var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Show host, toolchain and connectivity diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiagnostics(cmd.Context())
	},
}

func runDiagnostics(ctx context.Context) error {
	a := newAgent()
	defer a.Close()

	detector := system.New(logger, a.cfg.PodBinary)
	info := detector.GetHostInfo(ctx)

	fmt.Printf("podrepo-agent v%s\n\n", version.Version)
	fmt.Printf("Host:\n")
	fmt.Printf("  Hostname: %s\n", info.Hostname)
	fmt.Printf("  Platform: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.KernelArch)
	fmt.Printf("  Uptime: %s\n", system.FormatUptime(info.Uptime))

	fmt.Printf("\nToolchain:\n")
	printToolVersion("pod", info.PodVersion)
	printToolVersion("git", info.GitVersion)
	if err := system.CheckNotRoot(); err != nil {
		fmt.Printf("  ⚠️  %v\n", err)
	}

	fmt.Printf("\nRepositories (%s):\n", a.cfg.ReposDir)
	if _, err := os.Stat(a.cfg.ReposDir); err != nil {
		fmt.Printf("  ❌ %v\n", err)
	}
	repos, err := a.coordinator.Discover(ctx)
	if err != nil {
		fmt.Printf("  ❌ Discovery failed: %v\n", err)
	} else {
		printRepos(repos)
	}

	fmt.Printf("\nConnectivity:\n")
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, address := range cdnAddresses(repos) {
		printCDNStatus(a.client.Ping(pingCtx, address))
	}
	return nil
}

// cdnAddresses lists the CDN repos to probe, always including trunk
func cdnAddresses(repos []models.SourceRepo) []string {
	addresses := []string{constants.TrunkCDNAddress}
	for _, repo := range repos {
		if repo.Kind == models.RepoKindCDN && repo.Address != constants.TrunkCDNAddress {
			addresses = append(addresses, repo.Address)
		}
	}
	return addresses
}

func printToolVersion(name, v string) {
	if v == "" {
		fmt.Printf("  ❌ %s: not found\n", name)
		return
	}
	fmt.Printf("  ✅ %s: %s\n", name, v)
}

func printCDNStatus(status *models.CDNStatus) {
	if !status.Reachable {
		if status.StatusCode != 0 {
			fmt.Printf("  ❌ %s: HTTP %d\n", status.Address, status.StatusCode)
		} else {
			fmt.Printf("  ❌ %s: unreachable\n", status.Address)
		}
		return
	}
	fmt.Printf("  ✅ %s: CocoaPods %s (min %s)\n", status.Address, status.LastVersion, status.MinVersion)
}
