package render

import (
	"bytes"
	"fmt"
	"math"
)

// Braille blocks, 4 sub-blocks high: empty, 1/4, 1/2, 3/4, full
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

const subBlocksPerLine = 4.0

// Sparkline renders values as a multi-line braille chart with min/max labels.
// It returns "" for fewer than two values.
func Sparkline(values []float64, height int) string {
	if len(values) < 2 || height < 1 {
		return ""
	}

	minVal, maxVal := bounds(values)

	// Pad the range so flat series still show
	buffer := math.Max((maxVal-minVal)*0.1, 0.5)
	minVal = math.Max(0, minVal-buffer)
	maxVal += buffer
	rangeVal := maxVal - minVal

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = make([]rune, len(values))
		for j := range rows[i] {
			rows[i][j] = blocks[0]
		}
	}

	for x, val := range values {
		normalized := (val - minVal) / rangeVal
		totalSubBlocks := normalized * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				remainder = max(0, min(remainder, len(blocks)-1))
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	result.WriteString(fmt.Sprintf("Max: %.1f\n", maxVal))
	for _, row := range rows {
		result.WriteString(string(row))
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("Min: %.1f", minVal))
	return result.String()
}

// CompactSparkline renders values on two braille lines, one column per value,
// for tooltips with tight length limits. It returns "" for fewer than two values.
func CompactSparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := bounds(values)
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	var top, bottom bytes.Buffer
	for _, val := range values {
		// 0-8 sub-blocks, lower line fills first
		level := int(math.Round((val - minVal) / rangeVal * 2 * subBlocksPerLine))
		lower := min(level, 4)
		upper := max(level-4, 0)
		bottom.WriteRune(blocks[lower])
		top.WriteRune(blocks[upper])
	}
	return top.String() + "\n" + bottom.String()
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// tail returns the last n values
func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
