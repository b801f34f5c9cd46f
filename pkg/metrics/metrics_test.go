package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.RecordExtraction("lpr", 81, 2*time.Millisecond)
	r.RecordExtraction("lpr", 81, time.Millisecond)
	r.RecordExtraction("eis", 61, time.Millisecond)
	r.RecordFailure("lpr")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.filesTotal.WithLabelValues("lpr", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.filesTotal.WithLabelValues("lpr", StatusFailed)))
	assert.Equal(t, 162.0, testutil.ToFloat64(r.rowsTotal.WithLabelValues("lpr")))
	assert.Equal(t, 61.0, testutil.ToFloat64(r.rowsTotal.WithLabelValues("eis")))
}

func TestRecorder_Fit(t *testing.T) {
	r := NewRecorder()
	r.RecordFit(1200, 0.9999, 5)
	r.RecordFit(1650, 0.9998, 7)

	assert.Equal(t, 7.0, testutil.ToFloat64(r.fitHalfWidth))
	assert.Equal(t, 1650.0, testutil.ToFloat64(r.lastResistance))
	assert.Equal(t, 1, testutil.CollectAndCount(r.fitRSquared))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.RecordExtraction("ocp", 60, time.Millisecond)
	r.RecordFailure("ocp")
	r.RecordFit(1, 1, 5)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordExtraction("ocp", 60, time.Millisecond)

	path := filepath.Join(t.TempDir(), "corrosion.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `corrosion_files_total{kind="ocp",status="ok"} 1`), text)
	assert.Contains(t, text, "corrosion_rows_extracted_total")
}

func TestRecorder_WriteTextfileBadPath(t *testing.T) {
	r := NewRecorder()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing metrics")
}
