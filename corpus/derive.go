package corpus

import (
	"fmt"

	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/table"
)

// Column names of the movie plots corpus.
const (
	ColumnTitle       = "Title"
	ColumnPlot        = "Plot"
	ColumnReleaseYear = "Release Year"
	ColumnOrigin      = "Origin/Ethnicity"
	ColumnDirector    = "Director"
	ColumnGenre       = "Genre"
)

// TextFormat renders a title and a body into one embeddable text.
const TextFormat = "Title: %s Plot: %s"

// DeriveTexts builds one embeddable text per row from the title and body
// columns. Null cells render as empty strings. Row order is preserved.
func DeriveTexts(frame *table.Frame, titleCol, bodyCol string) ([]string, error) {
	title, ok := frame.Column(titleCol)
	if !ok {
		return nil, &core.ProjectionError{Column: titleCol}
	}
	body, ok := frame.Column(bodyCol)
	if !ok {
		return nil, &core.ProjectionError{Column: bodyCol}
	}

	texts := make([]string, frame.Len())
	for row := range texts {
		t, _ := title.Text(row)
		b, _ := body.Text(row)
		texts[row] = fmt.Sprintf(TextFormat, t, b)
	}
	return texts, nil
}
