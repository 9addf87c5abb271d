package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV_WithHeader(t *testing.T) {
	rows, err := CSV(strings.NewReader("issue,solution\nJam,Clean\nNoise,Oil\n"), true)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"issue": "Jam", "solution": "Clean"}, rows[0])
	assert.Equal(t, map[string]string{"issue": "Noise", "solution": "Oil"}, rows[1])
}

func TestCSV_WithoutHeader(t *testing.T) {
	rows, err := CSV(strings.NewReader("Jam,Clean\nNoise,Oil\n"), false)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"k0": "Jam", "k1": "Clean"}, rows[0])
}

func TestCSV_RaggedRows(t *testing.T) {
	rows, err := CSV(strings.NewReader("a,b,c\n1,2\n"), true)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": ""}, rows[0])
}

func TestCSV_QuotedFields(t *testing.T) {
	rows, err := CSV(strings.NewReader("issue,solution\n\"Jam, again\",\"Clean\nthoroughly\"\n"), true)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Jam, again", rows[0]["issue"])
	assert.Equal(t, "Clean\nthoroughly", rows[0]["solution"])
}

func TestCSV_Empty(t *testing.T) {
	_, err := CSV(strings.NewReader(""), true)
	require.Error(t, err)
}
