package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	cases := []struct {
		raw  string
		want Selection
	}{
		{"all", Selection{All: true}},
		{"ALL", Selection{All: true}},
		{"5", Selection{Numbers: []int{5}}},
		{"8,1,3", Selection{Numbers: []int{1, 3, 8}}},
		{"1,3,3,8,1", Selection{Numbers: []int{1, 3, 8}}},
		{"2-5", Selection{Numbers: []int{2, 3, 4, 5}}},
		{"5-5", Selection{Numbers: []int{5}}},
		{"1,4-6,12", Selection{Numbers: []int{1, 4, 5, 6, 12}}},
		{"4-6,5,2", Selection{Numbers: []int{2, 4, 5, 6}}},
		{" 3 , 1 ", Selection{Numbers: []int{1, 3}}},
	}

	for _, tc := range cases {
		got, err := ParseSelection(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseSelectionRejectsBadInput(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		",,",
		"x",
		"0",
		"-3",
		"1-",
		"2-a",
		"3-1",
		"0-3",
		"1;3",
	}

	for _, raw := range inputs {
		_, err := ParseSelection(raw)

		var invalid *InvalidRequestError
		assert.ErrorAs(t, err, &invalid, "%q should not parse", raw)
	}
}

func TestSelectionEmpty(t *testing.T) {
	assert.True(t, Selection{}.Empty())
	assert.False(t, Selection{All: true}.Empty())
	assert.False(t, Selection{Numbers: []int{1}}.Empty())
}
