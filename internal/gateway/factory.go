package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"

	"execution-core/pkg/config"
	"execution-core/pkg/venue"
	"execution-core/pkg/venue/binance"
	"execution-core/pkg/venue/bitcoke"
	"execution-core/pkg/venue/bitmex"
	"execution-core/pkg/venue/bybit"
	"execution-core/pkg/venue/huobi"
	"execution-core/pkg/venue/mxc"
	"execution-core/pkg/venue/okex"
	"execution-core/pkg/venue/paper"
)

// buildGateway constructs a venue gateway from its profile declaration.
func buildGateway(vs config.VenueSettings, creds Credentials) (venue.Gateway, error) {
	switch vs.Type {
	case "okex":
		return okex.New(okex.Config{
			APIKey:       creds.APIKey,
			APISecret:    creds.APISecret,
			Passphrase:   creds.Passphrase,
			InstrumentID: vs.InstrumentID,
			BaseURL:      vs.BaseURL,
			Timeout:      vs.Timeout(),
		}), nil

	case "binance":
		return binance.New(binance.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Symbol:    vs.Symbol,
			BaseURL:   vs.BaseURL,
			Timeout:   vs.Timeout(),
		}), nil

	case "huobi":
		return huobi.New(huobi.Config{
			APIKey:       creds.APIKey,
			APISecret:    creds.APISecret,
			Symbol:       vs.Symbol,
			ContractType: vs.ContractType,
			MarketSymbol: vs.MarketSymbol,
			LeverRate:    vs.LeverRate,
			BaseURL:      vs.BaseURL,
			Timeout:      vs.Timeout(),
		}), nil

	case "bybit":
		return bybit.New(bybit.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Symbol:    vs.Symbol,
			BaseURL:   vs.BaseURL,
			Timeout:   vs.Timeout(),
		}), nil

	case "bitmex":
		return bitmex.New(bitmex.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Symbol:    vs.Symbol,
			BaseURL:   vs.BaseURL,
			Timeout:   vs.Timeout(),
		}), nil

	case "mxc":
		return mxc.New(mxc.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Symbol:    vs.Symbol,
			BaseURL:   vs.BaseURL,
			Timeout:   vs.Timeout(),
		}), nil

	case "bitcoke":
		return bitcoke.New(bitcoke.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Symbol:    vs.Symbol,
			Currency:  vs.Currency,
			BaseURL:   vs.BaseURL,
			Timeout:   vs.Timeout(),
		}), nil

	case "paper":
		start := decimal.Zero
		if vs.StartPrice != "" {
			var err error
			if start, err = decimal.NewFromString(vs.StartPrice); err != nil {
				return nil, fmt.Errorf("start_price: %w", err)
			}
		}
		return paper.New(paper.Config{StartPrice: start}), nil

	default:
		return nil, fmt.Errorf("unsupported venue type: %s", vs.Type)
	}
}
