package core

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// utf8BOM is commonly added by Windows programs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanText strips a leading UTF-8 BOM and replaces invalid UTF-8 sequences
// with U+FFFD so the delimited parser only ever sees valid text.
func cleanText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	return bytes.ToValidUTF8(data, []byte("�"))
}

// uniqueHeaders makes header names usable as row keys.
// Blank names become "__EMPTY", "__EMPTY_1", ...; repeats get "_1", "_2", ...
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	next := make(map[string]int, len(header))

	for i, h := range header {
		base := h
		if base == "" {
			base = "__EMPTY"
		}
		name := base
		for used[name] {
			next[base]++
			name = base + "_" + strconv.Itoa(next[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
