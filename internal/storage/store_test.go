package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pbpksim/internal/run"
	"github.com/san-kum/pbpksim/internal/solve"
)

func sampleOutput() *run.Output {
	return &run.Output{
		Time: []float64{0, 0.5, 1},
		Species: map[string][]float64{
			"Agut":    {10, 6, 3.5},
			"Aplasma": {0, 3, 4.25},
		},
		Events: []solve.EventRecord{{Index: 0, Time: 0.5}},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	params := map[string]float64{"D_o": 10, "vplasma": 3}
	order := []string{"Agut", "Aplasma"}
	runID, err := st.Save("bpa", params, order, sampleOutput())
	require.NoError(t, err)
	assert.Contains(t, runID, "bpa_")

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, meta.ID)
	assert.Equal(t, "bpa", meta.Model)
	assert.Equal(t, 1.0, meta.FinalTime)
	assert.Equal(t, 3, meta.Samples)
	assert.Equal(t, params, meta.Params)
	require.Len(t, meta.Events, 1)
	assert.Equal(t, 0.5, meta.Events[0].Time)
}

func TestLoadSeriesRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	out := sampleOutput()
	order := []string{"Agut", "Aplasma"}
	runID, err := st.Save("bpa", nil, order, out)
	require.NoError(t, err)

	loaded, loadedOrder, err := st.LoadSeries(runID)
	require.NoError(t, err)
	assert.Equal(t, order, loadedOrder)
	assert.Equal(t, out.Time, loaded.Time)
	assert.Equal(t, out.Species, loaded.Species)
}

func TestSaveEmptyOutput(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	out := &run.Output{Time: []float64{}, Species: map[string][]float64{}}
	runID, err := st.Save("twocomp", nil, nil, out)
	require.NoError(t, err)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Samples)
	assert.Equal(t, 0.0, meta.FinalTime)
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.Save("bpa", nil, []string{"Agut", "Aplasma"}, sampleOutput())
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "bpa", runs[0].Model)
}

func TestListMissingBaseDir(t *testing.T) {
	st := New(t.TempDir() + "/does-not-exist")
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadUnknownRun(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	_, err := st.Load("nope_123")
	assert.Error(t, err)
}
