package fitquality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const outSample = ` => Phase No. 1 
 => Global user-weigthed Chi2 (Bragg contrib.):   3.217
 => Normal end, final calculations and writing...
`

func TestReadChi2AndRwp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "step_001_scale.out"), []byte(outSample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "step_001_scale.sum"), []byte(" Rp:   10.2  Rwp:   12.85  Re: 7.1\n"), 0o644))

	report, err := Read(dir, "step_001_scale", nil)
	require.NoError(t, err)
	require.NotNil(t, report.Chi2)
	require.InDelta(t, 3.217, *report.Chi2, 1e-9)
	require.NotNil(t, report.Rwp)
	require.InDelta(t, 12.85, *report.Rwp, 1e-9)
}

func TestReadWithoutSummary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.out"), []byte(outSample), 0o644))

	report, err := Read(dir, "a", nil)
	require.NoError(t, err)
	require.NotNil(t, report.Chi2)
	require.Nil(t, report.Rwp)
}

func TestChi2Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.out")
	require.NoError(t, os.WriteFile(path, []byte("no figures here\n"), 0o644))

	_, err := Chi2(path, nil)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Read(t.TempDir(), "absent", nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestChi2Latin1Output(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.out")
	data := append([]byte("Temp\xe9rature\n"), []byte(outSample)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	chi2, err := Chi2(path, []string{"utf-8", "latin1"})
	require.NoError(t, err)
	require.InDelta(t, 3.217, chi2, 1e-9)
}
