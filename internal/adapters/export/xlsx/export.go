// Package xlsx writes the priced variant catalog as a spreadsheet.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/printshop/internal/catalog"
)

const (
	SheetVariants    = "Variants"
	SheetCollections = "Collections"
)

var (
	variantHeader    = []any{"Photo ID", "Title", "Collection", "Variant ID", "Material", "Width (in)", "Height (in)", "DPI", "Quality", "Price (USD)"}
	collectionHeader = []any{"Collection ID", "Name", "Photos", "URL"}
)

// WriteVariants renders one row per eligible variant and one per collection.
func WriteVariants(w io.Writer, p catalog.Projection) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetVariants); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetCollections); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeRow(f, SheetVariants, 1, variantHeader); err != nil {
		return err
	}
	row := 2
	for _, prod := range p.Products {
		for _, v := range prod.Variants {
			vals := []any{
				prod.Photo.ID, prod.Photo.Title, prod.Photo.CollectionID, v.ID, v.MaterialName,
				v.Size.Width, v.Size.Height, v.DPI, string(v.Quality), v.Price,
			}
			if err := writeRow(f, SheetVariants, row, vals); err != nil {
				return err
			}
			row++
		}
	}

	if err := writeRow(f, SheetCollections, 1, collectionHeader); err != nil {
		return err
	}
	for i, c := range p.Collections {
		if err := writeRow(f, SheetCollections, i+2, []any{c.ID, c.Name, c.PhotoCount, c.URL}); err != nil {
			return err
		}
	}

	for _, sheet := range []string{SheetVariants, SheetCollections} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetVariants, "A", "D", 24); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
