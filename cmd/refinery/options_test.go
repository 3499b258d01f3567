package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/refinery/internal/batch"
	"github.com/alexisbeaulieu97/refinery/internal/config"
)

func TestParseOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		total   int
		want    []int
		wantErr string
	}{
		{name: "empty", value: "", total: 3},
		{name: "single", value: "2", total: 3, want: []int{1}},
		{name: "list and range", value: "1,3-5", total: 5, want: []int{0, 2, 3, 4}},
		{name: "spaces", value: " 1 , 2 - 3 ", total: 3, want: []int{0, 1, 2}},
		{name: "zero", value: "0", total: 3, wantErr: "invalid step range"},
		{name: "reversed", value: "3-1", total: 3, wantErr: "invalid step range"},
		{name: "beyond", value: "4", total: 3, wantErr: "exceeds the 3 configured steps"},
		{name: "garbage", value: "a", total: 3, wantErr: "invalid step"},
		{name: "only commas", value: ",,", total: 3, wantErr: "selects no steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseOnly(tt.value, tt.total)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadProjectWithOverrides(t *testing.T) {
	fx := newProjectFixture(t)

	opts := projectOptions{
		ProjectPath: fx.project,
		Timeout:     90,
		Only:        "2",
		Strategy:    "recursive",
	}
	st, err := opts.load()
	require.NoError(t, err)

	assert.Equal(t, "/bin/sh", st.cfg.EnginePath)
	assert.Equal(t, []string{filepath.Join(fx.dir, "engine.sh")}, st.cfg.EngineArgs)
	assert.Equal(t, filepath.Join(fx.dir, "base.pcr"), st.cfg.BaseTemplatePath)
	assert.Equal(t, filepath.Join(fx.dir, "sample.dat"), st.cfg.DataFilePath)
	assert.Equal(t, filepath.Join(fx.dir, "work"), st.cfg.WorkDir)
	assert.Equal(t, 90*time.Second, st.cfg.Timeout)
	assert.Equal(t, 2, st.cfg.MaxRetainedArtifactSets)
	assert.Equal(t, config.DefaultStepCeiling, st.cfg.StepCeiling)
	assert.Equal(t, []int{1}, st.cfg.Only)
	assert.Equal(t, batch.StrategyRecursive, st.strategy)
	assert.Len(t, st.steps, 2)
	assert.Nil(t, st.validator)
}

func TestLoadRequiresEngine(t *testing.T) {
	fx := newProjectFixture(t)

	opts := projectOptions{
		Template: filepath.Join(fx.dir, "base.pcr"),
		Library:  filepath.Join(fx.dir, "library.yaml"),
		Steps:    filepath.Join(fx.dir, "steps.yaml"),
	}
	_, err := opts.load()
	require.ErrorContains(t, err, "engine is required")
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	fx := newProjectFixture(t)

	_, err := projectOptions{ProjectPath: fx.project, Strategy: "spiral"}.load()
	require.Error(t, err)
}
