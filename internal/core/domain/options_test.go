package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuntimeStrategy(t *testing.T) {
	rs, err := ParseRuntimeStrategy("per_request")
	require.NoError(t, err)
	assert.Equal(t, StrategyPerRequest, rs)

	_, err = ParseRuntimeStrategy("bogus")
	require.ErrorIs(t, err, ErrInvalidOption)
	assert.Contains(t, err.Error(), "runtime strategy 'BOGUS' does not exist")
}

func TestParseMergeMode(t *testing.T) {
	m, err := ParseMergeMode("Keep_All")
	require.NoError(t, err)
	assert.Equal(t, MergeKeepAll, m)

	_, err = ParseMergeMode("squash")
	require.ErrorIs(t, err, ErrInvalidOption)
	assert.Contains(t, err.Error(), "merge mode 'SQUASH' does not exist")
}

func TestDeployOptions_Resolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		rs, m, err := DeployOptions{}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, StrategySingleton, rs)
		assert.Equal(t, MergeMergeCollections, m)
	})

	t.Run("explicit", func(t *testing.T) {
		rs, m, err := DeployOptions{Strategy: "per_case", MergeMode: "override_empty"}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, StrategyPerCase, rs)
		assert.Equal(t, MergeOverrideEmpty, m)
	})

	t.Run("invalid strategy", func(t *testing.T) {
		_, _, err := DeployOptions{Strategy: "x"}.Resolve()
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("invalid merge mode", func(t *testing.T) {
		_, _, err := DeployOptions{MergeMode: "x"}.Resolve()
		assert.ErrorIs(t, err, ErrInvalidOption)
	})
}
