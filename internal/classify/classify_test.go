package classify

import (
	"fmt"
	"math/rand"
	"testing"

	"podrepo-agent/pkg/models"

	"github.com/stretchr/testify/assert"
)

func addresses(repos []models.SourceRepo) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = r.Address
	}
	return out
}

func TestClassify(t *testing.T) {
	trunk := models.SourceRepo{Address: "https://cdn/specs", IsDefault: true}
	a := models.SourceRepo{Address: "A", IsDefault: true}
	b := models.SourceRepo{Address: "B"}
	c := models.SourceRepo{Address: "C"}

	tests := []struct {
		name         string
		declared     []string
		catalog      []models.SourceRepo
		wantActive   []string
		wantInactive []string
	}{
		{
			name:         "no declarations selects the default repo",
			declared:     nil,
			catalog:      []models.SourceRepo{trunk},
			wantActive:   []string{"https://cdn/specs"},
			wantInactive: []string{},
		},
		{
			name:         "declared repo is active and default is not",
			declared:     []string{"B"},
			catalog:      []models.SourceRepo{a, b},
			wantActive:   []string{"B"},
			wantInactive: []string{"A"},
		},
		{
			name:         "output follows catalog order not declaration order",
			declared:     []string{"C", "A"},
			catalog:      []models.SourceRepo{a, b, c},
			wantActive:   []string{"A", "C"},
			wantInactive: []string{"B"},
		},
		{
			name:         "unknown declared address is dropped",
			declared:     []string{"Z"},
			catalog:      []models.SourceRepo{a, b},
			wantActive:   []string{},
			wantInactive: []string{"A", "B"},
		},
		{
			name:         "duplicate catalog entries collapse",
			declared:     []string{"B", "B"},
			catalog:      []models.SourceRepo{b, b, c},
			wantActive:   []string{"B"},
			wantInactive: []string{"C"},
		},
		{
			name:         "empty catalog",
			declared:     []string{"A"},
			catalog:      nil,
			wantActive:   []string{},
			wantInactive: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.declared, tt.catalog)
			assert.Equal(t, tt.wantActive, addresses(got.Active))
			assert.Equal(t, tt.wantInactive, addresses(got.Inactive))
		})
	}
}

func TestClassify_PartitionIsComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 300; n++ {
		var catalog []models.SourceRepo
		numCatalog := rng.Intn(8)
		for i := 0; i < numCatalog; i++ {
			catalog = append(catalog, models.SourceRepo{
				Address:   fmt.Sprintf("repo-%d", i),
				IsDefault: rng.Intn(3) == 0,
			})
		}
		var declared []string
		numDeclared := rng.Intn(4)
		for k := 0; k < numDeclared; k++ {
			declared = append(declared, fmt.Sprintf("repo-%d", rng.Intn(10)))
		}

		got := Classify(declared, catalog)

		active := map[string]bool{}
		for _, r := range got.Active {
			active[r.Address] = true
		}
		union := map[string]bool{}
		for _, r := range got.Active {
			union[r.Address] = true
		}
		for _, r := range got.Inactive {
			assert.False(t, active[r.Address], "%s is both active and inactive", r.Address)
			union[r.Address] = true
		}
		assert.Len(t, union, len(catalog))
		assert.Equal(t, len(catalog), len(got.Active)+len(got.Inactive))

		if len(declared) == 0 {
			for _, r := range got.Active {
				assert.True(t, r.IsDefault)
			}
			for _, r := range got.Inactive {
				assert.False(t, r.IsDefault)
			}
		}
	}
}

func TestUnresolved(t *testing.T) {
	catalog := []models.SourceRepo{{Address: "A"}, {Address: "B"}}

	assert.Nil(t, Unresolved(nil, catalog))
	assert.Nil(t, Unresolved([]string{"A", "B"}, catalog))
	assert.Equal(t, []string{"Z", "Y"}, Unresolved([]string{"Z", "A", "Y", "Z"}, catalog))
}

func TestProject(t *testing.T) {
	catalog := []models.SourceRepo{{Address: "A"}, {Address: "B", IsDefault: true}}

	got := Project("/work/app", []string{"A", "Z"}, catalog)
	assert.Equal(t, "/work/app", got.Project)
	assert.Equal(t, []string{"A", "Z"}, got.Declared)
	assert.Equal(t, []string{"A"}, addresses(got.Active))
	assert.Equal(t, []string{"B"}, addresses(got.Inactive))
	assert.Equal(t, []string{"Z"}, got.Unresolved)

	got = Project("/work/app", nil, catalog)
	assert.Equal(t, []string{}, got.Declared)
	assert.Equal(t, []string{}, got.Unresolved)
	assert.Equal(t, []string{"B"}, addresses(got.Active))
}
