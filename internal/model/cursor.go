package model

// Cursor marks where an interrupted batch run resumes.
// LastUserID is the user to resume at, LastPortfolioID the last portfolio of
// that user that was fully processed (0 when none) and LastDate the last
// snapshot date written before the stop.
type Cursor struct {
	LastUserID      int64 `json:"lastUserId"`
	LastPortfolioID int64 `json:"lastPortfolioId"`
	LastDate        Date  `json:"lastDate"`
}

func (c Cursor) IsZero() bool {
	return c == Cursor{}
}
