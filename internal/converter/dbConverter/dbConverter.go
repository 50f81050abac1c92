package dbConverter

import (
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/model/dbModel"
)

// ConvertTransaction normalizes the side. An unknown side is kept as stored so
// the reconstructor rejects it as a ledger integrity error.
func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	side, err := model.ParseSide(dbTx.Side)
	if err != nil {
		side = model.Side(dbTx.Side)
	}

	return model.Transaction{
		ID:            dbTx.ID,
		PortfolioID:   dbTx.PortfolioID,
		InstrumentKey: model.InstrumentKey(dbTx.InstrumentKey),
		Side:          side,
		Quantity:      dbTx.Quantity,
		PricePerUnit:  dbTx.PricePerUnit,
		Currency:      dbTx.Currency,
		OccurredAt:    dbTx.OccurredAt,
	}
}

func ConvertSnapshot(dbSnapshot dbModel.Snapshot) model.PortfolioSnapshot {
	return model.PortfolioSnapshot{
		PortfolioID: dbSnapshot.PortfolioID,
		Date:        model.DateOf(dbSnapshot.SnapshotDate),
		Valuation:   dbSnapshot.Valuation,
		Currency:    dbSnapshot.Currency,
	}
}

func ConvertPortfolio(dbPortfolio dbModel.Portfolio) model.Portfolio {
	return model.Portfolio{
		PortfolioID:  dbPortfolio.PortfolioID,
		UserID:       dbPortfolio.UserID,
		Name:         dbPortfolio.Name,
		BaseCurrency: dbPortfolio.BaseCurrency,
	}
}
