package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensoretl/internal/model"
)

// Table specs and the insert shape produced by model.Batch must agree, or
// auto-created tables would reject the loader's explicit column lists.
func TestTables_MatchBatchColumns(t *testing.T) {
	t.Parallel()

	specs := Tables()
	require.Len(t, specs, len(model.LoadOrder))

	var b model.Batch
	for i, td := range b.Tables() {
		spec := specs[i]
		require.Equal(t, model.LoadOrder[i], spec.Name)
		require.Equal(t, td.Name, spec.Name)

		var cols []string
		if spec.PrimaryKey != nil {
			cols = append(cols, spec.PrimaryKey.Name)
		}
		for _, c := range spec.Columns {
			cols = append(cols, c.Name)
		}
		assert.Equal(t, td.Columns, cols, "table %s", spec.Name)
	}
}

func TestTables_ChildrenReferenceMachines(t *testing.T) {
	t.Parallel()

	for _, spec := range Tables()[1:] {
		var found bool
		for _, c := range spec.Columns {
			if c.Name == "machine_id" {
				found = true
				assert.Equal(t, "machines(machine_id)", c.References, spec.Name)
				assert.False(t, c.IsNullable(), spec.Name)
			}
		}
		assert.True(t, found, "%s has no machine_id", spec.Name)
	}
}

func TestSpecificSensorSources_CoverModel(t *testing.T) {
	t.Parallel()

	for _, s := range model.SpecificSensors {
		_, ok := SpecificSensorSources[s]
		assert.True(t, ok, s)
	}
	assert.Len(t, SpecificSensorSources, len(model.SpecificSensors))
}
