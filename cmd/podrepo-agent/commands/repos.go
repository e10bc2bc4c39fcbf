package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"podrepo-agent/internal/classify"
	"podrepo-agent/internal/manifest"
	"podrepo-agent/internal/refresh"
	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	reposJSON    bool
	projectDir   string
	updateActive bool
)

// reposCmd groups the source repository commands
var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Inspect and update CocoaPods source repositories",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed source repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newAgent()
		defer a.Close()

		repos, err := a.coordinator.Discover(cmd.Context())
		if err != nil {
			return err
		}
		if reposJSON {
			return printJSON(repos)
		}
		printRepos(repos)
		return nil
	},
}

var reposClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Split repositories into the ones a project uses and the rest",
	Long: `Read the Podfile and Podfile.lock of a project and split the installed
source repositories into active and inactive ones. A project that declares
no sources uses the default CocoaPods repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newAgent()
		defer a.Close()

		result, err := classifyProject(cmd.Context(), a, projectDirOrDefault())
		if err != nil {
			return err
		}
		if reposJSON {
			return printJSON(result)
		}

		fmt.Printf("Project: %s\n\nActive:\n", result.Project)
		printRepos(result.Active)
		fmt.Printf("\nInactive:\n")
		printRepos(result.Inactive)
		for _, address := range result.Unresolved {
			fmt.Printf("\n⚠️  %s is declared but not installed", address)
		}
		if len(result.Unresolved) > 0 {
			fmt.Println()
		}
		return nil
	},
}

var reposUpdateCmd = &cobra.Command{
	Use:   "update [name|address...]",
	Short: "Update source repositories",
	Long: `Update the named source repositories, or with --active every repository
the project uses. Repositories are updated concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkNotRoot(); err != nil {
			return err
		}
		if len(args) == 0 && !updateActive {
			return errors.New("name a repository or pass --active")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a := newAgent()
		defer a.Close()

		if _, err := a.coordinator.Discover(ctx); err != nil {
			return err
		}

		targets, err := updateTargets(ctx, a, args)
		if err != nil {
			return err
		}
		return runUpdates(ctx, a, targets)
	},
}

func init() {
	reposCmd.PersistentFlags().BoolVar(&reposJSON, "json", false, "print JSON instead of a table")
	reposClassifyCmd.Flags().StringVar(&projectDir, "project", "", "project directory (default from config)")
	reposUpdateCmd.Flags().StringVar(&projectDir, "project", "", "project directory used by --active")
	reposUpdateCmd.Flags().BoolVar(&updateActive, "active", false, "update every repository the project uses")

	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposClassifyCmd)
	reposCmd.AddCommand(reposUpdateCmd)
}

func projectDirOrDefault() string {
	if projectDir != "" {
		return projectDir
	}
	return cfgManager.GetConfig().ProjectDir
}

// classifyProject discovers repositories and classifies them for dir
func classifyProject(ctx context.Context, a *agent, dir string) (models.ProjectClassification, error) {
	repos, err := a.coordinator.Discover(ctx)
	if err != nil {
		return models.ProjectClassification{}, err
	}

	m, err := manifest.Read(dir)
	if err != nil {
		return models.ProjectClassification{}, err
	}

	result := classify.Project(dir, m.DeclaredSources(), repos)
	result.Locked = m.LockedSources()
	if len(result.Unresolved) > 0 {
		logger.WithFields(logrus.Fields{
			"project":    dir,
			"unresolved": result.Unresolved,
		}).Warn("Project declares sources that are not installed")
	}
	return result, nil
}

// updateTargets resolves the addresses to update
func updateTargets(ctx context.Context, a *agent, args []string) ([]models.SourceRepo, error) {
	if updateActive {
		result, err := classifyProject(ctx, a, projectDirOrDefault())
		if err != nil {
			return nil, err
		}
		return result.Active, nil
	}

	targets := make([]models.SourceRepo, 0, len(args))
	for _, key := range args {
		repo, ok := a.catalog.Find(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", refresh.ErrRepoNotFound, key)
		}
		targets = append(targets, repo)
	}
	return targets, nil
}

// runUpdates starts every update and waits for all of them
func runUpdates(ctx context.Context, a *agent, targets []models.SourceRepo) error {
	var g errgroup.Group
	for _, repo := range targets {
		repo := repo
		op, err := a.coordinator.Update(ctx, repo.Address)
		if errors.Is(err, refresh.ErrAlreadyUpdating) {
			fmt.Printf("⏭️  %s is already updating\n", repo.DisplayName)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("🔄 Updating %s (%s)\n", repo.DisplayName, repo.DisplayAddress)
		g.Go(func() error {
			if err := op.Wait(ctx); err != nil {
				fmt.Printf("❌ %s: %v\n", repo.DisplayName, err)
				return err
			}
			fmt.Printf("✅ %s is up to date\n", repo.DisplayName)
			return nil
		})
	}
	return g.Wait()
}

func printRepos(repos []models.SourceRepo) {
	if len(repos) == 0 {
		fmt.Println("  (none)")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tKIND\tADDRESS\tSTATUS")
	for _, repo := range repos {
		status := "idle"
		if repo.IsUpdating {
			status = "updating"
		}
		name := repo.DisplayName
		if repo.IsDefault {
			name += " (default)"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", name, repo.Kind, repo.DisplayAddress, status)
	}
	w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
