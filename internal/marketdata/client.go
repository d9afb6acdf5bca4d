// Package marketdata integrates with the Alpaca trading and market data
// REST APIs for account state, portfolio positions, and stock prices.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Account is a brokerage account snapshot. Alpaca reports monetary
// values as decimal strings; they are parsed into floats here.
type Account struct {
	AccountID         string  `json:"account_id"`
	Cash              float64 `json:"cash"`
	PortfolioValue    float64 `json:"portfolio_value"`
	BuyingPower       float64 `json:"buying_power"`
	Equity            float64 `json:"equity"`
	LastEquity        float64 `json:"last_equity"`
	LongMarketValue   float64 `json:"long_market_value"`
	ShortMarketValue  float64 `json:"short_market_value"`
	InitialMargin     float64 `json:"initial_margin"`
	MaintenanceMargin float64 `json:"maintenance_margin"`
	Status            string  `json:"status"`
}

// Position is one open portfolio position.
type Position struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	MarketValue    float64 `json:"market_value"`
	CostBasis      float64 `json:"cost_basis"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
	CurrentPrice   float64 `json:"current_price"`
	LastdayPrice   float64 `json:"lastday_price"`
	ChangeToday    float64 `json:"change_today"`
}

// StockPrice combines the latest trade, latest quote, and most recent
// daily bar for a symbol.
type StockPrice struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Time     string  `json:"time"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Volume   float64 `json:"volume"`
}

// Config holds Alpaca API credentials and endpoints.
type Config struct {
	APIKey    string
	SecretKey string
	// TradingBaseURL is the trading API root; the paper endpoint by default.
	TradingBaseURL string
	// DataBaseURL is the market data API root.
	DataBaseURL string
}

// Client calls the Alpaca trading and data APIs.
type Client struct {
	trading *resty.Client
	data    *resty.Client
	logger  *zap.Logger
}

// NewClient creates an Alpaca client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("alpaca api key and secret key are required")
	}
	if cfg.TradingBaseURL == "" {
		cfg.TradingBaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = "https://data.alpaca.markets"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	headers := map[string]string{
		"APCA-API-KEY-ID":     cfg.APIKey,
		"APCA-API-SECRET-KEY": cfg.SecretKey,
	}

	trading := resty.New().
		SetBaseURL(cfg.TradingBaseURL).
		SetHeaders(headers).
		SetTimeout(30 * time.Second)
	data := resty.New().
		SetBaseURL(cfg.DataBaseURL).
		SetHeaders(headers).
		SetTimeout(30 * time.Second)

	return &Client{trading: trading, data: data, logger: logger}, nil
}

type rawAccount struct {
	ID                string `json:"id"`
	Cash              string `json:"cash"`
	PortfolioValue    string `json:"portfolio_value"`
	BuyingPower       string `json:"buying_power"`
	Equity            string `json:"equity"`
	LastEquity        string `json:"last_equity"`
	LongMarketValue   string `json:"long_market_value"`
	ShortMarketValue  string `json:"short_market_value"`
	InitialMargin     string `json:"initial_margin"`
	MaintenanceMargin string `json:"maintenance_margin"`
	Status            string `json:"status"`
}

// AccountInfo returns the current account snapshot.
func (c *Client) AccountInfo(ctx context.Context) (*Account, error) {
	var raw rawAccount
	resp, err := c.trading.R().
		SetContext(ctx).
		SetResult(&raw).
		Get("/v2/account")
	if err != nil {
		return nil, fmt.Errorf("fetching account info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("account request failed: %s", resp.Status())
	}

	return &Account{
		AccountID:         raw.ID,
		Cash:              parseFloat(raw.Cash),
		PortfolioValue:    parseFloat(raw.PortfolioValue),
		BuyingPower:       parseFloat(raw.BuyingPower),
		Equity:            parseFloat(raw.Equity),
		LastEquity:        parseFloat(raw.LastEquity),
		LongMarketValue:   parseFloat(raw.LongMarketValue),
		ShortMarketValue:  parseFloat(raw.ShortMarketValue),
		InitialMargin:     parseFloat(raw.InitialMargin),
		MaintenanceMargin: parseFloat(raw.MaintenanceMargin),
		Status:            raw.Status,
	}, nil
}

type rawPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	MarketValue    string `json:"market_value"`
	CostBasis      string `json:"cost_basis"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
	CurrentPrice   string `json:"current_price"`
	LastdayPrice   string `json:"lastday_price"`
	ChangeToday    string `json:"change_today"`
}

// Positions returns all open portfolio positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var raw []rawPosition
	resp, err := c.trading.R().
		SetContext(ctx).
		SetResult(&raw).
		Get("/v2/positions")
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("positions request failed: %s", resp.Status())
	}

	positions := make([]Position, len(raw))
	for i, p := range raw {
		positions[i] = Position{
			Symbol:         p.Symbol,
			Quantity:       parseFloat(p.Qty),
			MarketValue:    parseFloat(p.MarketValue),
			CostBasis:      parseFloat(p.CostBasis),
			UnrealizedPL:   parseFloat(p.UnrealizedPL),
			UnrealizedPLPC: parseFloat(p.UnrealizedPLPC),
			CurrentPrice:   parseFloat(p.CurrentPrice),
			LastdayPrice:   parseFloat(p.LastdayPrice),
			ChangeToday:    parseFloat(p.ChangeToday),
		}
	}
	return positions, nil
}

type latestTradeResponse struct {
	Trade struct {
		Price     float64   `json:"p"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

type latestQuoteResponse struct {
	Quote struct {
		AskPrice float64 `json:"ap"`
		AskSize  float64 `json:"as"`
		BidPrice float64 `json:"bp"`
		BidSize  float64 `json:"bs"`
	} `json:"quote"`
}

type barsResponse struct {
	Bars []struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Volume float64 `json:"v"`
	} `json:"bars"`
}

// StockPrice returns the latest trade, quote, and daily bar for a symbol.
func (c *Client) StockPrice(ctx context.Context, ticker string) (*StockPrice, error) {
	ticker = strings.ToUpper(ticker)

	var trade latestTradeResponse
	resp, err := c.data.R().
		SetContext(ctx).
		SetResult(&trade).
		Get("/v2/stocks/" + ticker + "/trades/latest")
	if err != nil {
		return nil, fmt.Errorf("fetching latest trade for %s: %w", ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("latest trade request for %s failed: %s", ticker, resp.Status())
	}

	var quote latestQuoteResponse
	resp, err = c.data.R().
		SetContext(ctx).
		SetResult(&quote).
		Get("/v2/stocks/" + ticker + "/quotes/latest")
	if err != nil {
		return nil, fmt.Errorf("fetching latest quote for %s: %w", ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("latest quote request for %s failed: %s", ticker, resp.Status())
	}

	price := &StockPrice{
		Symbol:   ticker,
		Price:    trade.Trade.Price,
		Time:     trade.Trade.Timestamp.Format(time.RFC3339),
		AskPrice: quote.Quote.AskPrice,
		AskSize:  quote.Quote.AskSize,
		BidPrice: quote.Quote.BidPrice,
		BidSize:  quote.Quote.BidSize,
	}

	// Daily OHLCV is best effort: quotes outside market hours can lag
	// behind the most recent bar.
	var bars barsResponse
	resp, err = c.data.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"timeframe": "1Day",
			"limit":     "1",
			"sort":      "desc",
		}).
		SetResult(&bars).
		Get("/v2/stocks/" + ticker + "/bars")
	if err != nil || resp.IsError() {
		c.logger.Warn("daily bar lookup failed", zap.String("ticker", ticker), zap.Error(err))
		return price, nil
	}
	if len(bars.Bars) > 0 {
		price.Open = bars.Bars[0].Open
		price.High = bars.Bars[0].High
		price.Low = bars.Bars[0].Low
		price.Volume = bars.Bars[0].Volume
	}

	return price, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
