package grid

// Geometry describes how cells are laid out for one measured container width.
// All sizes are in terminal cells: widths in columns, heights in lines.
type Geometry struct {
	Columns    int // Cells per row, >= 1
	CellWidth  int // Width of one cell including its border
	ItemHeight int // Height of one cell including its border
	Gap        int // Blank columns between cells and blank lines between rows
}

// RowCount returns the number of rows needed for n items in columns columns.
// A non-positive column count is treated as 1. The result is never below 1,
// so an empty list still occupies one (empty) row.
func RowCount(n, columns int) int {
	if columns <= 0 {
		columns = 1
	}
	if n <= 0 {
		return 1
	}
	return (n + columns - 1) / columns
}

// TotalHeight returns the height of the full grid for n items:
// rows*ItemHeight plus a gap between each pair of adjacent rows.
// It is a layout hint for the page height and does not decide which rows
// get rendered.
func TotalHeight(n int, g Geometry) int {
	rows := RowCount(n, g.Columns)
	height := max(g.ItemHeight, 0)
	gap := max(g.Gap, 0)
	return rows*height + max(rows-1, 0)*gap
}

// RowTop returns the line offset of the top of row within the grid.
func RowTop(row int, g Geometry) int {
	if row <= 0 {
		return 0
	}
	return row * (max(g.ItemHeight, 0) + max(g.Gap, 0))
}
