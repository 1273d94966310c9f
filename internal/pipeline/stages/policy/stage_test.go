package policy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalRules(t *testing.T, rules []models.Rule) string {
	t.Helper()
	b, err := json.Marshal(rules)
	require.NoError(t, err)
	return string(b)
}

func TestExecute_FatalViolationFailsStage(t *testing.T) {
	stage := New(nil, nil)

	ruleSet := &models.QualityRuleSet{
		ChunkCoverageRules: marshalRules(t, []models.Rule{
			{Name: "must-have-chunks", Severity: models.RuleSeverityError, Enabled: true, Fatal: true, Type: models.RuleTypeChunkCoverage},
		}),
	}
	bb := &core.RunBlackboard{RunID: models.NewULID(), RuleSet: ruleSet}

	result, err := stage.Execute(context.Background(), bb)

	require.Error(t, err)
	assert.Equal(t, models.StageStatusFailed, result.Status)
	assert.Equal(t, models.PolicyStatusFailed, bb.PolicyStatus)
}

func TestExecute_NonFatalViolationSucceedsStage(t *testing.T) {
	stage := New(nil, nil)

	ruleSet := &models.QualityRuleSet{
		ChunkCoverageRules: marshalRules(t, []models.Rule{
			{Name: "must-have-chunks", Severity: models.RuleSeverityWarning, Enabled: true, Fatal: false, Type: models.RuleTypeChunkCoverage},
		}),
	}
	bb := &core.RunBlackboard{RunID: models.NewULID(), RuleSet: ruleSet}

	result, err := stage.Execute(context.Background(), bb)

	require.NoError(t, err)
	assert.NotEqual(t, models.StageStatusFailed, result.Status)
	assert.Equal(t, models.PolicyStatusWarnings, bb.PolicyStatus)
}

func TestEvaluateRule_DuplicateRate(t *testing.T) {
	rule := models.Rule{Name: "dup", Severity: models.RuleSeverityWarning, Type: models.RuleTypeDuplicateRate, Config: `{"max_rate":0.1}`}
	bb := &core.RunBlackboard{
		RawFiles: []*models.RawFile{
			{Checksum: "a"}, {Checksum: "a"}, {Checksum: "b"}, {Checksum: "c"},
		},
	}

	v := evaluateRule(rule, bb)
	require.NotNil(t, v)
	assert.Equal(t, models.RuleTypeDuplicateRate, v.RuleType)
	assert.EqualValues(t, 1, v.AffectedCount)
}

func TestEvaluateRule_DuplicateRate_WithinBounds(t *testing.T) {
	rule := models.Rule{Name: "dup", Severity: models.RuleSeverityWarning, Type: models.RuleTypeDuplicateRate, Config: `{"max_rate":0.5}`}
	bb := &core.RunBlackboard{
		RawFiles: []*models.RawFile{
			{Checksum: "a"}, {Checksum: "a"}, {Checksum: "b"}, {Checksum: "c"},
		},
	}

	assert.Nil(t, evaluateRule(rule, bb))
}

func TestEvaluateRule_BadExtensions(t *testing.T) {
	rule := models.Rule{Name: "ext", Severity: models.RuleSeverityError, Type: models.RuleTypeBadExtensions, Config: `{"denied":[".exe",".bat"]}`}
	bb := &core.RunBlackboard{
		RawFiles: []*models.RawFile{
			{Filename: "report.pdf"}, {Filename: "installer.EXE"},
		},
	}

	v := evaluateRule(rule, bb)
	require.NotNil(t, v)
	assert.EqualValues(t, 1, v.AffectedCount)
}

func TestEvaluateRule_Freshness(t *testing.T) {
	stale := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC().Add(-1 * time.Hour)
	rule := models.Rule{Name: "fresh", Severity: models.RuleSeverityWarning, Type: models.RuleTypeFreshness, Config: `{"max_age_hours":24}`}
	bb := &core.RunBlackboard{
		RawFiles: []*models.RawFile{
			{IngestedAt: &stale}, {IngestedAt: &fresh},
		},
	}

	v := evaluateRule(rule, bb)
	require.NotNil(t, v)
	assert.EqualValues(t, 1, v.AffectedCount)
}

func TestEvaluateRule_FileSize(t *testing.T) {
	rule := models.Rule{Name: "size", Severity: models.RuleSeverityWarning, Type: models.RuleTypeFileSize, Config: `{"max_bytes":1000}`}
	bb := &core.RunBlackboard{
		RawFiles: []*models.RawFile{
			{SizeBytes: 500}, {SizeBytes: 5000},
		},
	}

	v := evaluateRule(rule, bb)
	require.NotNil(t, v)
	assert.EqualValues(t, 1, v.AffectedCount)
}

func TestEvaluateRule_ContentLength(t *testing.T) {
	rule := models.Rule{Name: "len", Severity: models.RuleSeverityWarning, Type: models.RuleTypeContentLength, Config: `{"min_length":10}`}
	bb := &core.RunBlackboard{
		Chunks: []*models.ChunkMetadata{
			{ContentLength: 5}, {ContentLength: 100},
		},
	}

	v := evaluateRule(rule, bb)
	require.NotNil(t, v)
	assert.EqualValues(t, 1, v.AffectedCount)
}
