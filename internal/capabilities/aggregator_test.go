package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAdoptsAbsentCategory(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("fs", Set{
		CategoryTools: {"listChanged": true},
	}, nil)

	result, _ := agg.Result()
	assert.Equal(t, true, result[CategoryTools]["listChanged"])
}

func TestMergeNotificationKeyORsBooleans(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("a", Set{CategoryTools: {"listChanged": true}}, nil)
	agg.Merge("b", Set{CategoryTools: {"listChanged": false}}, nil)

	result, _ := agg.Result()
	assert.Equal(t, true, result[CategoryTools]["listChanged"])
}

func TestMergeNonNotificationKeyLastWriterWins(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("a", Set{CategoryExperimental: {"feature": "alpha"}}, nil)
	agg.Merge("b", Set{CategoryExperimental: {"feature": "beta"}}, nil)

	result, _ := agg.Result()
	assert.Equal(t, "beta", result[CategoryExperimental]["feature"])
}

func TestMergeLoggingIsSimpleLastWrite(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("a", nil, map[string]interface{}{"level": "debug"})
	agg.Merge("b", nil, map[string]interface{}{"level": "info"})

	_, loggingVal := agg.Result()
	assert.Equal(t, map[string]interface{}{"level": "info"}, loggingVal)
}

func TestMergeNilIncomingSetIsNoOp(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("a", Set{CategoryTools: {"listChanged": true}}, nil)
	agg.Merge("b", nil, nil)

	result, _ := agg.Result()
	assert.Equal(t, true, result[CategoryTools]["listChanged"])
}

func TestMergeDeterministicOverInsertionOrder(t *testing.T) {
	run := func() Set {
		agg := NewAggregate()
		agg.Merge("a", Set{CategoryResources: {"subscribe": true}}, nil)
		agg.Merge("b", Set{CategoryResources: {"subscribe": false}}, nil)
		result, _ := agg.Result()
		return result
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestMergeNonBooleanNotificationKeyFallsBackToLastWriterWins(t *testing.T) {
	agg := NewAggregate()
	agg.Merge("a", Set{CategoryTools: {"listChanged": "yes"}}, nil)
	agg.Merge("b", Set{CategoryTools: {"listChanged": "no"}}, nil)

	result, _ := agg.Result()
	assert.Equal(t, "no", result[CategoryTools]["listChanged"])
}
