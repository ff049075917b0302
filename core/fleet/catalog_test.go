package fleet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vehicles:\n  - id: V1\n    name: Van\n    capacity: 1\n  - id: V2\n    capacity: unlimited\n"), 0o644))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	vs, err := c.Vehicles(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []model.Vehicle{{ID: "V1", Name: "Van", Capacity: 1}, {ID: "V2", Capacity: model.Unlimited}}, vs)
}

func TestLoadCatalogJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vehicles":[{"id":"V1","capacity":"unlimited"}]}`), 0o644))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c, 1)
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vehicles":[{"id":"V1"},{"id":"V1"}]}`), 0o644))
	_, err := LoadCatalog(path)
	assert.Error(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "fleet.toml"))
	assert.Error(t, err)
}

func TestStaticCatalogCopies(t *testing.T) {
	c := StaticCatalog{{ID: "V1"}}
	vs, err := c.Vehicles(context.Background(), time.Now())
	require.NoError(t, err)
	vs[0].ID = "changed"
	assert.Equal(t, "V1", c[0].ID)
}
