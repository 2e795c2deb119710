package report

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malscan/malscan/internal/types"
)

func sev(s types.Severity) types.Finding {
	return types.Finding{Path: "a.js", Line: 1, Category: "x", Matcher: "m", AdjustedSeverity: s}
}

func TestRiskScoreBandsAndSaturation(t *testing.T) {
	assert.Equal(t, 0, RiskScore(nil))
	assert.Equal(t, 0, RiskScore([]types.Finding{sev(types.SevLow)}))
	assert.Equal(t, 20, RiskScore([]types.Finding{sev(types.SevMedium)}))
	assert.Equal(t, 50, RiskScore([]types.Finding{sev(types.SevHigh)}))
	assert.Equal(t, 100, RiskScore([]types.Finding{sev(types.SevCritical)}))

	assert.Equal(t, 70, RiskScore([]types.Finding{sev(types.SevHigh), sev(types.SevMedium)}))
	assert.Equal(t, 100, RiskScore([]types.Finding{sev(types.SevHigh), sev(types.SevHigh), sev(types.SevHigh)}))
}

func TestRiskScoreOrderIndependent(t *testing.T) {
	fs := []types.Finding{
		sev(types.SevHigh), sev(types.SevMedium), sev(types.SevLow), sev(types.SevMedium),
	}
	want := RiskScore(fs)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(fs), func(a, b int) { fs[a], fs[b] = fs[b], fs[a] })
		require.Equal(t, want, RiskScore(fs))
	}
}

func TestRiskScoreUsesEffectiveSeverity(t *testing.T) {
	// detector said high, enhancer downgraded to low
	f := types.Finding{Severity: types.SevHigh, AdjustedSeverity: types.SevLow}
	assert.Equal(t, 0, RiskScore([]types.Finding{f}))

	// no enhancement: provisional severity counts
	f = types.Finding{Severity: types.SevHigh}
	assert.Equal(t, 50, RiskScore([]types.Finding{f}))
}

func TestVerdictBands(t *testing.T) {
	assert.Equal(t, VerdictSafe, Verdict(0))
	assert.Equal(t, VerdictSafe, Verdict(40))
	assert.Equal(t, VerdictReview, Verdict(41))
	assert.Equal(t, VerdictReview, Verdict(80))
	assert.Equal(t, VerdictDoNotInstall, Verdict(81))
	assert.Equal(t, VerdictDoNotInstall, Verdict(100))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 0, ExitCode([]types.Finding{sev(types.SevMedium)}))
	assert.Equal(t, 1, ExitCode([]types.Finding{sev(types.SevHigh), sev(types.SevLow)}))
	assert.Equal(t, 2, ExitCode([]types.Finding{sev(types.SevLow), sev(types.SevCritical)}))
}

func TestBuildSummary(t *testing.T) {
	fs := []types.Finding{sev(types.SevCritical), sev(types.SevMedium), sev(types.SevMedium)}
	rep := Build("./pkg", 12, 1500*time.Millisecond, fs)

	assert.Equal(t, "./pkg", rep.ScanInfo.Target)
	assert.Equal(t, 12, rep.ScanInfo.FilesScanned)
	assert.InDelta(t, 1.5, rep.ScanInfo.DurationSeconds, 1e-9)
	assert.Equal(t, 100, rep.Summary.RiskScore)
	assert.Equal(t, VerdictDoNotInstall, rep.Summary.Verdict)
	assert.Equal(t, 1, rep.Summary.Counts["critical"])
	assert.Equal(t, 2, rep.Summary.Counts["medium"])
	assert.Equal(t, 0, rep.Summary.Counts["high"])
}
