package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	now := time.Now()

	sameYear := time.Date(now.Year(), 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, sameYear.Format("Jan _2 15:04"), formatTime(sameYear))

	lastYear := time.Date(now.Year()-1, 3, 5, 14, 30, 0, 0, time.Local)
	assert.Contains(t, formatTime(lastYear), "2025")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"ID", "STATE"}, [][]string{
		{"1", "pending"},
		{"22", "synced"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "ID  STATE", lines[0])
	assert.Equal(t, "1   pending", lines[1])
	assert.Equal(t, "22  synced", lines[2])
}

func TestPrintTable_ColoredCellsAlign(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"ID", "STATE", "DESC"}, [][]string{
		{"1", colorYellow + "pending" + colorReset, "a"},
		{"2", colorGreen + "synced" + colorReset, "b"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	// Stripped of color escapes, every line aligns on the same offsets.
	assert.Equal(t, "ID  STATE    DESC", ansiPattern.ReplaceAllString(lines[0], ""))
	assert.Equal(t, "1   pending  a", ansiPattern.ReplaceAllString(lines[1], ""))
	assert.Equal(t, "2   synced   b", ansiPattern.ReplaceAllString(lines[2], ""))
}

func TestVisibleLen(t *testing.T) {
	assert.Equal(t, 7, visibleLen(colorYellow+"pending"+colorReset))
	assert.Equal(t, 6, visibleLen("synced"))
}
