package main

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scorekit/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePredictions(t *testing.T) {
	fr, err := frame.FromColumns(2,
		frame.CategoricalColumn("predict", frame.NewDomain("no", "yes"), "yes", "no", ""),
		frame.NumericColumn("no", 0.25, 0.75, math.NaN()),
		frame.NumericColumn("yes", 0.75, 0.25, math.NaN()),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writePredictions(&buf, fr))
	assert.Equal(t, "predict,no,yes\nyes,0.25,0.75\nno,0.75,0.25\n,,\n", buf.String())
}

func TestScoreCommand_TrainsAndScoresInMemory(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < 20; i++ {
		y := 1
		if i >= 10 {
			y = 5
		}
		fmt.Fprintf(&b, "%d,%d\n", i, y)
	}
	data := filepath.Join(dir, "reg.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o644))
	out := filepath.Join(dir, "preds.csv")

	cmd := newScoreCmd()
	cmd.SetArgs([]string{
		"--train", data, "--algo", "tree",
		"--params", `{"response_column":"y","min_rows":2}`,
		"--data", data, "--output", out,
	})
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(got)), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, "predict", lines[0])
	assert.Equal(t, "1", lines[1])
	assert.Equal(t, "5", lines[20])
	assert.Contains(t, stderr.String(), `"mse": 0`)
}

func TestScoreCommand_RequiresModelOrTrain(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	data := filepath.Join(t.TempDir(), "d.csv")
	require.NoError(t, os.WriteFile(data, []byte("x\n1\n"), 0o644))

	cmd := newScoreCmd()
	cmd.SetArgs([]string{"--data", data})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--model or --train")
}
