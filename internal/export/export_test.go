package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"delivery-planner/internal/models"
	"delivery-planner/internal/testutil"
)

func samplePlan() (*models.SavedPlan, []models.Stop) {
	stops := []models.Stop{
		testutil.NewStop(1, "Lakewood", 40.08, -74.21),
		testutil.NewStop(2, "Lakewood", 40.09, -74.20),
		testutil.NewStop(3, "Monsey", 41.11, -74.07),
	}
	slots := models.NewDriverSlots(2)
	plan := &models.SavedPlan{
		ID:  "plan-1",
		Day: models.Monday,
		Result: models.PlanResult{
			Routes: []models.PlannedRoute{
				{Driver: slots[0], StopIDs: []int64{2, 1}, Metrics: models.RouteMetrics{Stops: 2}},
				{Driver: slots[1], StopIDs: []int64{}},
			},
			Outliers: models.PlannedRoute{Driver: models.OutlierDriverSlot(), StopIDs: []int64{3}},
			Summary:  models.PlanSummary{Routed: 2, Outliers: 1},
		},
	}
	return plan, stops
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, ".yml": FormatYAML, "yaml": FormatYAML, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}

func TestBuildManifest(t *testing.T) {
	plan, stops := samplePlan()
	m := BuildManifest(plan, stops)

	require.Len(t, m.Routes, 3)
	assert.Equal(t, "Driver 1", m.Routes[0].Driver.Label)
	require.Len(t, m.Routes[0].Stops, 2)
	assert.Equal(t, int64(2), m.Routes[0].Stops[0].ID)
	assert.Equal(t, 1, m.Routes[0].Stops[0].Sequence)
	assert.Equal(t, 40.09, m.Routes[0].Stops[0].Lat)
	assert.Empty(t, m.Routes[1].Stops)
	assert.Equal(t, "Driver 0", m.Routes[2].Driver.Label)
	assert.Equal(t, "Monsey", m.Routes[2].Stops[0].City)
}

func TestBuildManifestSkipsEmptyOutliers(t *testing.T) {
	plan, stops := samplePlan()
	plan.Result.Outliers.StopIDs = []int64{}
	m := BuildManifest(plan, stops)
	assert.Len(t, m.Routes, 2)
}

func TestWriteCSV(t *testing.T) {
	plan, stops := samplePlan()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, BuildManifest(plan, stops)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"Driver 1", "0", "1", "2"}, rows[1][:4])
	assert.Equal(t, "outlier", rows[3][1])
	assert.Equal(t, "41.110000", rows[3][7])
}

func TestWriteJSON(t *testing.T) {
	plan, stops := samplePlan()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, BuildManifest(plan, stops)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "plan-1", decoded["plan_id"])
	routes := decoded["routes"].([]any)
	driver := routes[2].(map[string]any)["driver"].(map[string]any)
	assert.Equal(t, "outlier", driver["slot"])
}

func TestWriteYAML(t *testing.T) {
	plan, stops := samplePlan()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, BuildManifest(plan, stops)))

	var decoded struct {
		PlanID string `yaml:"plan_id"`
		Routes []struct {
			Driver struct {
				Label string `yaml:"label"`
			} `yaml:"driver"`
			Stops []ManifestStop `yaml:"stops"`
		} `yaml:"routes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "plan-1", decoded.PlanID)
	require.Len(t, decoded.Routes, 3)
	assert.Equal(t, "Driver 2", decoded.Routes[1].Driver.Label)
	assert.Equal(t, int64(1), decoded.Routes[0].Stops[1].ID)
}
