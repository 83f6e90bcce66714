package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsDispatchActivities(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	for _, taskType := range []string{"recommend-technicians", "plan-emergency-diversion", "record-location-update"} {
		activity, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, activity.InputSchema, taskType)
		assert.Equal(t, "object", activity.InputSchema["type"])
	}

	_, ok := reg.Find("unknown-task")
	assert.False(t, ok)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","activities":[{"id":"a.b.c","taskType":"t"}]}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)

	activity, ok := reg.Find("t")
	require.True(t, ok)
	assert.Equal(t, "a.b.c", activity.ID)
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate_Default(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	assert.NoError(t, reg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		activities []Activity
		want       string
	}{
		{"empty", nil, "no activities"},
		{"missing id", []Activity{{TaskType: "t"}}, "missing required field: ID"},
		{"duplicate id", []Activity{{ID: "a", TaskType: "t1"}, {ID: "a", TaskType: "t2"}}, "duplicate activity ID"},
		{"missing task type", []Activity{{ID: "a"}}, "TaskType"},
		{"duplicate task type", []Activity{{ID: "a", TaskType: "t"}, {ID: "b", TaskType: "t"}}, "duplicate task type"},
		{"bad timeout", []Activity{{ID: "a", TaskType: "t", Timeout: "soon"}}, "invalid timeout"},
		{"bad schema", []Activity{{ID: "a", TaskType: "t", InputSchema: map[string]interface{}{"type": 12}}}, "input schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: tt.activities}
			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "activities.json")
	require.NoError(t, reg.Save(path, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", loaded.LastUpdated)
	assert.Len(t, loaded.Activities, len(reg.Activities))
}
