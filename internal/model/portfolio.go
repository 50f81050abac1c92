package model

type Portfolio struct {
	PortfolioID  int64
	UserID       int64
	Name         string
	BaseCurrency string
}
