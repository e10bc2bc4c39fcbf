// Package classify partitions a catalog snapshot into the repositories a
// project uses and the ones it does not.
package classify

import "podrepo-agent/pkg/models"

// Classify splits catalog into active and inactive repos relative to the
// addresses a manifest declares.
//
// With no declared addresses the project implicitly uses the default specs
// repository, so only repos flagged IsDefault are active. Declared addresses
// that are not in the catalog are ignored. Both outputs follow catalog order
// and contain each address at most once.
func Classify(declared []string, catalog []models.SourceRepo) models.Classification {
	wanted := make(map[string]struct{}, len(declared))
	for _, address := range declared {
		wanted[address] = struct{}{}
	}

	result := models.Classification{
		Active:   []models.SourceRepo{},
		Inactive: []models.SourceRepo{},
	}
	seen := make(map[string]struct{}, len(catalog))
	for _, repo := range catalog {
		if _, dup := seen[repo.Address]; dup {
			continue
		}
		seen[repo.Address] = struct{}{}

		var active bool
		if len(declared) == 0 {
			active = repo.IsDefault
		} else {
			_, active = wanted[repo.Address]
		}

		if active {
			result.Active = append(result.Active, repo)
		} else {
			result.Inactive = append(result.Inactive, repo)
		}
	}
	return result
}

// Unresolved returns the declared addresses that have no catalog entry, in
// declaration order and without duplicates.
func Unresolved(declared []string, catalog []models.SourceRepo) []string {
	known := make(map[string]struct{}, len(catalog))
	for _, repo := range catalog {
		known[repo.Address] = struct{}{}
	}

	var missing []string
	reported := make(map[string]struct{})
	for _, address := range declared {
		if _, ok := known[address]; ok {
			continue
		}
		if _, ok := reported[address]; ok {
			continue
		}
		reported[address] = struct{}{}
		missing = append(missing, address)
	}
	return missing
}

// Project classifies catalog for the project in dir and reports which of
// its declared addresses could not be resolved.
func Project(dir string, declared []string, catalog []models.SourceRepo) models.ProjectClassification {
	split := Classify(declared, catalog)
	unresolved := Unresolved(declared, catalog)
	if unresolved == nil {
		unresolved = []string{}
	}
	if declared == nil {
		declared = []string{}
	}
	return models.ProjectClassification{
		Project:    dir,
		Declared:   declared,
		Active:     split.Active,
		Inactive:   split.Inactive,
		Unresolved: unresolved,
	}
}
