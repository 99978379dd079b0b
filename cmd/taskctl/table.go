package main

import (
	"strings"
	"unicode/utf8"
)

const tableCellMaxWidth = 40
const tableCellEllipsis = "..."

func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(row))
		for i, cell := range row {
			cell = truncateCell(strings.Join(strings.Fields(cell), " "))
			cells[r][i] = cell
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		for i, cell := range row {
			b.WriteString(cell)
			if i == len(row)-1 {
				b.WriteByte('\n')
				continue
			}
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
		}
	}
	writeRow(headers)
	for _, row := range cells {
		writeRow(row)
	}
	return b.String()
}

func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= tableCellMaxWidth {
		return s
	}
	r := []rune(s)
	return string(r[:tableCellMaxWidth-len(tableCellEllipsis)]) + tableCellEllipsis
}
