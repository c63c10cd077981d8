package ocr

import (
	"docqa-go/internal/model"
	"fmt"
	"strings"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// FormatTables 把表格渲染为 markdown，每张表前带 "### Table from Page N" 标题。
// 第一行作为表头。没有行的表格会被跳过。
func FormatTables(tables []model.Table) string {
	var sb strings.Builder
	for _, t := range tables {
		if len(t.Rows) == 0 || len(t.Rows[0]) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n### Table from Page %d\n\n", t.Page)
		writeRow(&sb, t.Rows[0])
		sb.WriteString("|")
		for range t.Rows[0] {
			sb.WriteString(" --- |")
		}
		sb.WriteString("\n")
		for _, row := range t.Rows[1:] {
			writeRow(&sb, row)
		}
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, row []string) {
	sb.WriteString("|")
	for _, cell := range row {
		sb.WriteString(" ")
		sb.WriteString(cellEscaper.Replace(strings.TrimSpace(cell)))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}
