// Package ocr 负责 OCR 作业的提交与轮询，并把服务返回的扁平块图重建为文本和表格。
package ocr

import (
	"docqa-go/internal/model"
	"docqa-go/pkg/log"
	"docqa-go/pkg/textract"
	"strings"
)

// Stats 记录一次重建的统计信息。
type Stats struct {
	Blocks       int
	Lines        int
	Tables       int
	Cells        int
	DanglingRefs int
}

type cellKey struct {
	row, col int
}

// Reconstruct 把一个作业的全部结果页重建为 ExtractedDocument。
// 块先按页序、再按返回顺序展开，并建立 ID 索引；遍历只通过索引查找，不依赖块在列表中的位置。
// 指向不存在 ID 的边会被跳过并计入 Stats.DanglingRefs。
func Reconstruct(fingerprint string, pages []textract.Page) (*model.ExtractedDocument, Stats) {
	var blocks []*textract.Block
	for p := range pages {
		for b := range pages[p].Blocks {
			blocks = append(blocks, &pages[p].Blocks[b])
		}
	}

	index := make(map[string]*textract.Block, len(blocks))
	for _, b := range blocks {
		index[b.ID] = b
	}

	stats := Stats{Blocks: len(blocks)}
	var lines []string
	tables := make([]model.Table, 0)

	for _, b := range blocks {
		switch b.Type {
		case textract.BlockLine:
			lines = append(lines, b.Text)
			stats.Lines++
		case textract.BlockTable:
			tables = append(tables, buildTable(b, index, &stats))
			stats.Tables++
		}
	}

	if stats.DanglingRefs > 0 {
		log.Warnw("[OCR] 块图中存在悬空引用，已跳过", "fingerprint", fingerprint, "dangling", stats.DanglingRefs)
	}

	return &model.ExtractedDocument{
		Fingerprint: fingerprint,
		Text:        strings.Join(lines, "\n"),
		Tables:      tables,
	}, stats
}

func buildTable(table *textract.Block, index map[string]*textract.Block, stats *Stats) model.Table {
	cells := make(map[cellKey]string)
	maxRow, maxCol := 0, 0

	for _, id := range table.ChildIDs() {
		cell, ok := index[id]
		if !ok {
			warnDangling(table.ID, id)
			stats.DanglingRefs++
			continue
		}
		if cell.Type != textract.BlockCell {
			continue
		}
		if cell.RowIndex < 1 || cell.ColumnIndex < 1 {
			log.Warnw("[OCR] 单元格坐标无效，已跳过", "cell", cell.ID, "row", cell.RowIndex, "col", cell.ColumnIndex)
			continue
		}

		cells[cellKey{cell.RowIndex, cell.ColumnIndex}] = cellText(cell, index, stats)
		stats.Cells++
		if cell.RowIndex > maxRow {
			maxRow = cell.RowIndex
		}
		if cell.ColumnIndex > maxCol {
			maxCol = cell.ColumnIndex
		}
	}

	// 按 1..maxRow × 1..maxCol 补齐为矩形
	rows := make([][]string, 0, maxRow)
	for r := 1; r <= maxRow; r++ {
		row := make([]string, maxCol)
		for c := 1; c <= maxCol; c++ {
			row[c-1] = cells[cellKey{r, c}]
		}
		rows = append(rows, row)
	}

	page := table.Page
	if page < 1 {
		page = 1
	}
	return model.Table{Page: page, Rows: rows}
}

// cellText 拼接单元格下所有 WORD 的文本，没有 WORD 时为空字符串。
func cellText(cell *textract.Block, index map[string]*textract.Block, stats *Stats) string {
	var words []string
	for _, id := range cell.ChildIDs() {
		word, ok := index[id]
		if !ok {
			warnDangling(cell.ID, id)
			stats.DanglingRefs++
			continue
		}
		if word.Type == textract.BlockWord && word.Text != "" {
			words = append(words, word.Text)
		}
	}
	return strings.Join(words, " ")
}

func warnDangling(from, to string) {
	log.Debugf("[OCR] dangling edge %s -> %s", from, to)
}
