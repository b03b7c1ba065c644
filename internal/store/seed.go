package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// Seed loads the built-in demo dataset: two users, three holdings, two
// dividend receipts, and one realized disposal. There is no persistence
// layer, so this is the entire startup state unless callers add their own.
func Seed(ctx context.Context, s Store) error {
	users := []model.User{
		{ID: "u1", Name: "Nan"},
		{ID: "u2", Name: "Family A"},
	}
	for i := range users {
		if err := s.AddUser(ctx, &users[i]); err != nil {
			return err
		}
	}

	assets := []model.Asset{
		{
			ID:           "1",
			UserID:       "u1",
			Ticker:       "QDTE",
			Name:         "Roundhill S&P 500 0DTE",
			Type:         model.TypeETF,
			Frequency:    model.FreqWeekly,
			Currency:     "USD",
			AvgCost:      decimal.NewFromFloat(33.13),
			Shares:       decimal.NewFromInt(50),
			CurrentPrice: decimal.NewFromFloat(34.95),
			TotalCost:    decimal.NewFromFloat(1647.30),
			TotalCostTWD: decimal.NewFromInt(53537),
			Transactions: []model.Transaction{
				{ID: "t1", Date: "2024-12-01", Price: decimal.NewFromFloat(32.5), Units: decimal.NewFromInt(20), Rate: decimal.NewFromFloat(32.5)},
				{ID: "t2", Date: "2025-01-15", Price: decimal.NewFromFloat(33.55), Units: decimal.NewFromInt(30), Rate: decimal.NewFromFloat(32.6)},
			},
		},
		{
			ID:           "2",
			UserID:       "u1",
			Ticker:       "GOOG",
			Name:         "Alphabet Inc.",
			Type:         model.TypeStock,
			Frequency:    model.FreqIndividual,
			Currency:     "USD",
			AvgCost:      decimal.NewFromFloat(172.52),
			Shares:       decimal.NewFromInt(5),
			CurrentPrice: decimal.NewFromFloat(315.12),
			TotalCost:    decimal.NewFromFloat(862.60),
			TotalCostTWD: decimal.NewFromInt(28034),
			Transactions: []model.Transaction{
				{ID: "t3", Date: "2024-06-20", Price: decimal.NewFromFloat(172.52), Units: decimal.NewFromInt(5), Rate: decimal.NewFromFloat(32.5)},
			},
		},
		{
			ID:           "3",
			UserID:       "u2",
			Ticker:       "Allianz-Income",
			Name:         "Allianz Income and Growth AM",
			Type:         model.TypeFund,
			Frequency:    model.FreqMonthly,
			Currency:     "USD",
			ExchangeRate: decimal.NewFromFloat(31.29),
			AvgCost:      decimal.NewFromFloat(8.38),
			Shares:       decimal.NewFromFloat(4775.944),
			CurrentPrice: decimal.NewFromFloat(8.51),
			TotalCost:    decimal.NewFromFloat(40022.41),
			TotalCostTWD: decimal.NewFromInt(1200000),
			DataURL:      "https://www.moneydj.com/funddj/ya/yp010001.djhtm?a=TLZ64",
			Transactions: []model.Transaction{
				{ID: "t4", Date: "2023-01-10", Price: decimal.NewFromFloat(8.38), Units: decimal.NewFromFloat(4775.944), Rate: decimal.NewFromFloat(29.9)},
			},
		},
	}
	for i := range assets {
		if err := s.AddAsset(ctx, &assets[i]); err != nil {
			return err
		}
	}

	dividends := []model.Dividend{
		{
			ID:             "d1",
			UserID:         "u1",
			AssetID:        "1",
			Ticker:         "QDTE",
			ExDate:         "2025-05-08",
			PayDate:        "2025-05-12",
			AmountPerShare: decimal.NewFromFloat(0.31),
			Shares:         decimal.NewFromInt(30),
			GrossAmount:    decimal.NewFromFloat(9.30),
			Tax:            decimal.NewFromFloat(2.79),
			NetAmount:      decimal.NewFromFloat(6.51),
			NetAmountTWD:   decimal.NewFromInt(211),
			Frequency:      model.FreqWeekly,
		},
		{
			ID:             "d2",
			UserID:         "u2",
			AssetID:        "3",
			Ticker:         "Allianz-Income",
			ExDate:         "2025-07-15",
			PayDate:        "2025-08-14",
			AmountPerShare: decimal.NewFromFloat(0.055),
			Shares:         decimal.NewFromFloat(2858.672),
			GrossAmount:    decimal.NewFromFloat(157.22),
			Tax:            decimal.Zero,
			NetAmount:      decimal.NewFromFloat(157.22),
			NetAmountTWD:   decimal.NewFromInt(4757),
			Frequency:      model.FreqMonthly,
		},
	}
	for i := range dividends {
		if err := s.AddDividend(ctx, &dividends[i]); err != nil {
			return err
		}
	}

	history := model.HistoryEntry{
		ID:          "h1",
		UserID:      "u1",
		Ticker:      "UNCY",
		Name:        "Unicycive Therapeutics",
		SellDate:    "2025-06-20",
		SellPrice:   decimal.NewFromFloat(6.00),
		AvgBuyPrice: decimal.NewFromFloat(6.48),
		Shares:      decimal.NewFromInt(130),
		PnL:         decimal.NewFromFloat(-62.64),
		PnLPercent:  decimal.NewFromFloat(-7.43),
		Currency:    "USD",
	}
	return s.AddHistory(ctx, &history)
}
