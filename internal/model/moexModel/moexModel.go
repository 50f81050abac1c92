package moexModel

// RawHistory is the ISS history document: a column-oriented table plus the
// pagination cursor block.
type RawHistory struct {
	History       Table `json:"history"`
	HistoryCursor Table `json:"history.cursor"`
}

type Table struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// Cursor is the decoded history.cursor row.
type Cursor struct {
	Index    int
	Total    int
	PageSize int
}
