package tabular

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `Route,Location,URL,Avg Stars,Your Stars,Route Type,Rating,Pitches,Length,Area Latitude,Area Longitude
Epinephrine,Red Rocks,https://www.mountainproject.com/route/105732422/epinephrine,3.9,-1,Trad,5.9,13,1600,36.1,-115.4
"Crack, the",Index,https://www.mountainproject.com/route/1/crack,2.0,-1,Trad,5.10a,1,80,47.8,-121.5
`

func TestReadAndInsert(t *testing.T) {
	r := NewReader(strings.NewReader(export))
	header, err := r.Header()
	require.NoError(t, err)

	want := []string{"Route", "Location", "URL", "Avg Stars", "Your Stars", "Route Type", "Difficulty",
		"Maturity Rating", "Maturity Reason", "Pitches", "Length", "Area Latitude", "Area Longitude"}
	if diff := cmp.Diff(want, OutputHeader(header)); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Rating", header[ColDifficulty], "input header must not be modified")

	rows, err := r.All()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Crack, the", rows[1].Route())
	assert.Equal(t, "https://www.mountainproject.com/route/1/crack", rows[1].URL())

	out := Insert(rows[0].Fields, "R", "Long runout")
	assert.Len(t, out, 13)
	assert.Equal(t, []string{"5.9", "R", "Long runout", "13"}, out[6:10])
}

func TestShortRow(t *testing.T) {
	r := NewReader(strings.NewReader(export + "a,b,c\n"))
	_, err := r.Header()
	require.NoError(t, err)
	_, err = r.All()
	assert.ErrorIs(t, err, ErrShortRow)
	assert.Contains(t, err.Error(), "line 4")
}

func TestEmptyInput(t *testing.T) {
	_, err := NewReader(strings.NewReader("")).Header()
	assert.Error(t, err)

	r := NewReader(strings.NewReader("a,b,c,d,e,f,g\n"))
	_, err = r.Header()
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriterQuotes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write([]string{"Crack, the", `say "hi"`}))
	assert.Equal(t, "\"Crack, the\",\"say \"\"hi\"\"\"\n", buf.String())
}
