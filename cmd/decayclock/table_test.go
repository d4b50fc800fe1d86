package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Events"},
		[][]string{{"Netflix", "12"}, {"Reddit"}},
		[]columnAlignment{alignLeft, alignRight},
	)

	assert.Contains(t, out, "Netflix")
	assert.Contains(t, out, "Reddit")
	assert.Contains(t, out, "EVENTS")
	assert.Equal(t, 6, len(strings.Split(strings.TrimSpace(out), "\n")))
}

func TestRenderTableNoHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "abcd…", shorten("abcdefgh", 5))
	assert.Equal(t, "ünïc…", shorten("ünïcødé", 5))
}
