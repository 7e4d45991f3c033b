package grid

// Resolver maps a measured container width to a [Geometry].
type Resolver interface {
	Resolve(width int) Geometry
}

// ResolverFunc adapts a plain function to [Resolver].
type ResolverFunc func(width int) Geometry

// Resolve calls f(width).
func (f ResolverFunc) Resolve(width int) Geometry { return f(width) }

// Default layout values, tuned for poster cells in an 80-200 column terminal.
const (
	DefaultMinCellWidth = 22
	DefaultMaxColumns   = 8
	DefaultGap          = 1
	DefaultTextLines    = 3
	minPosterLines      = 2
	maxPosterLines      = 8
)

// Responsive fits as many cells of at least MinCellWidth as the width allows,
// up to MaxColumns, and stretches them to fill the remaining space. Item height
// follows the cell width so wider cells get a taller poster block, keeping
// roughly a 2:3 poster aspect with terminal cells being about twice as tall as
// they are wide.
type Responsive struct {
	MinCellWidth int
	MaxColumns   int
	Gap          int
	TextLines    int // Lines below the poster block for title/year/rating
}

// NewResponsive returns a [Responsive] resolver with default values.
func NewResponsive() Responsive {
	return Responsive{
		MinCellWidth: DefaultMinCellWidth,
		MaxColumns:   DefaultMaxColumns,
		Gap:          DefaultGap,
		TextLines:    DefaultTextLines,
	}
}

// Resolve implements [Resolver].
func (r Responsive) Resolve(width int) Geometry {
	minWidth := r.MinCellWidth
	if minWidth < 4 {
		minWidth = DefaultMinCellWidth
	}
	gap := max(r.Gap, 0)

	// n cells need n*cell + (n-1)*gap columns.
	columns := (width + gap) / (minWidth + gap)
	if r.MaxColumns > 0 && columns > r.MaxColumns {
		columns = r.MaxColumns
	}
	if columns < 1 {
		columns = 1
	}

	cellWidth := (width - (columns-1)*gap) / columns
	if cellWidth < minWidth {
		cellWidth = minWidth
	}

	posterLines := cellWidth * 3 / 8
	posterLines = min(max(posterLines, minPosterLines), maxPosterLines)

	return Geometry{
		Columns:    columns,
		CellWidth:  cellWidth,
		ItemHeight: posterLines + max(r.TextLines, 0) + 2, // +2 for the cell border
		Gap:        gap,
	}
}
