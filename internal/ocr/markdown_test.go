package ocr

import (
	"testing"

	"docqa-go/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFormatTables(t *testing.T) {
	out := FormatTables([]model.Table{
		{Page: 1, Rows: [][]string{{"Name", "Age"}, {"Alice", ""}}},
		{Page: 2, Rows: [][]string{}},
		{Page: 4, Rows: [][]string{{"a|b", "line\nbreak"}}},
	})

	want := "\n### Table from Page 1\n\n" +
		"| Name | Age |\n" +
		"| --- | --- |\n" +
		"| Alice |  |\n" +
		"\n### Table from Page 4\n\n" +
		"| a\\|b | line break |\n" +
		"| --- | --- |\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "Page 2")
}

func TestFormatTablesEmpty(t *testing.T) {
	assert.Equal(t, "", FormatTables(nil))
}
