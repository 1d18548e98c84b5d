package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docannot/internal/doctree"
)

// CSVParser handles CSV files. Each data row becomes a section holding one
// entry per non-empty cell, titled by its column header.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.Tree{Title: baseTitle(filename, ".csv")}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	for i, row := range records[1:] {
		node := &doctree.Node{Title: fmt.Sprintf("Row %d", i+2)}
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			child := &doctree.Node{Text: cell}
			if j < len(headers) {
				child.Title = headers[j]
			}
			node.Children = append(node.Children, child)
		}
		if len(node.Children) > 0 {
			tree.Children = append(tree.Children, node)
		}
	}
	return tree, nil
}
