package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malscan/malscan/internal/types"
)

func TestWriteSARIF(t *testing.T) {
	fs := []types.Finding{
		{Path: "src/a.js", Line: 4, Category: "code_execution", Matcher: "eval_call",
			Severity: types.SevHigh, AdjustedSeverity: types.SevCritical, Snippet: "eval(x)"},
		{Path: "src/b.js", Line: 9, Category: "network_access", Matcher: "raw_socket",
			Severity: types.SevMedium, AdjustedSeverity: types.SevLow},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, Build(".", 2, time.Second, fs)))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine int `json:"startLine"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "malscan", run.Tool.Driver.Name)
	require.Len(t, run.Results, 2)

	assert.Equal(t, "code_execution/eval_call", run.Results[0].RuleID)
	assert.Equal(t, "error", run.Results[0].Level)
	loc := run.Results[0].Locations[0].PhysicalLocation
	assert.Equal(t, "src/a.js", loc.ArtifactLocation.URI)
	assert.Equal(t, 4, loc.Region.StartLine)

	// low effective severity maps to note
	assert.Equal(t, "note", run.Results[1].Level)
}
