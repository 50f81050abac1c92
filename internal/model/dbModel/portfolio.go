package dbModel

type Portfolio struct {
	PortfolioID  int64  `db:"portfolio_id"`
	UserID       int64  `db:"user_id"`
	Name         string `db:"name"`
	BaseCurrency string `db:"base_currency"`
}
