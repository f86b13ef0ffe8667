package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Currency formats integer amounts expressed in the smallest unit.
type Currency struct {
	Symbol    string
	Decimals  int
	Separator string
	// Pattern wraps the formatted number, e.g. "$%s".
	Pattern string

	unit int64
}

// NewDecimalCurrency returns a currency with dec fractional digits.
func NewDecimalCurrency(symbol string, dec int, sep, pattern string) *Currency {
	unit := int64(1)
	for i := 0; i < dec; i++ {
		unit *= 10
	}
	if pattern == "" {
		pattern = "%s"
	}
	return &Currency{
		Symbol:    symbol,
		Decimals:  dec,
		Separator: sep,
		Pattern:   pattern,
		unit:      unit,
	}
}

func (c *Currency) Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	num := strconv.FormatInt(amount/c.unit, 10)
	if c.Decimals > 0 {
		frac := strconv.FormatInt(amount%c.unit, 10)
		num += c.Separator + strings.Repeat("0", c.Decimals-len(frac)) + frac
	}
	return fmt.Sprintf(c.Pattern, sign+num)
}

func (c *Currency) String() string {
	return c.Symbol
}

// CurrencyRegistry maps symbols to currencies. It is filled once at start-up
// and only read afterwards.
type CurrencyRegistry struct {
	mu       sync.RWMutex
	bySymbol map[string]*Currency
	def      *Currency
}

func usd() *Currency {
	return NewDecimalCurrency("USD", 2, ".", "$%s")
}

// NewCurrencyRegistry returns a registry holding USD as its default.
func NewCurrencyRegistry() *CurrencyRegistry {
	r := &CurrencyRegistry{bySymbol: map[string]*Currency{}}
	r.Define(usd())
	return r
}

// Define registers c, replacing any currency with the same symbol. The first
// defined currency becomes the default.
func (r *CurrencyRegistry) Define(c *Currency) *Currency {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySymbol[c.Symbol] = c
	if r.def == nil || r.def.Symbol == c.Symbol {
		r.def = c
	}
	return c
}

func (r *CurrencyRegistry) Get(symbol string) (*Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, symbol)
	}
	return c, nil
}

func (r *CurrencyRegistry) Default() *Currency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

type currencyFile struct {
	Default    string `yaml:"default"`
	Currencies []struct {
		Symbol    string `yaml:"symbol"`
		Decimals  int    `yaml:"decimals"`
		Separator string `yaml:"separator"`
		Format    string `yaml:"format"`
	} `yaml:"currencies"`
}

// LoadCurrencies adds the currencies described by a YAML document to r.
func (r *CurrencyRegistry) LoadCurrencies(data []byte) error {
	var file currencyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse currencies: %w", err)
	}
	for i, c := range file.Currencies {
		if c.Symbol == "" {
			return fmt.Errorf("currency %d: missing symbol", i)
		}
		if c.Decimals < 0 || c.Decimals > 9 {
			return fmt.Errorf("currency %s: invalid decimals %d", c.Symbol, c.Decimals)
		}
		if c.Format != "" && strings.Count(c.Format, "%s") != 1 {
			return fmt.Errorf("currency %s: format must contain exactly one %%s", c.Symbol)
		}
		r.Define(NewDecimalCurrency(c.Symbol, c.Decimals, c.Separator, c.Format))
	}
	if file.Default != "" {
		c, err := r.Get(file.Default)
		if err != nil {
			return fmt.Errorf("default currency: %w", err)
		}
		r.mu.Lock()
		r.def = c
		r.mu.Unlock()
	}
	return nil
}

// LoadCurrencyRegistry builds the registry from the defaults plus an
// optional YAML file.
func LoadCurrencyRegistry(path string) (*CurrencyRegistry, error) {
	r := NewCurrencyRegistry()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read currency file: %w", err)
	}
	if err := r.LoadCurrencies(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Price is an amount in a currency. Two prices share a currency only when
// they point at the same Currency.
type Price struct {
	Currency *Currency
	Amount   int64
}

func (p Price) String() string {
	if p.Currency == nil {
		return strconv.FormatInt(p.Amount, 10)
	}
	return p.Currency.Format(p.Amount)
}

// ParsePrice decodes the wire form (symbol, amount).
func ParsePrice(r *CurrencyRegistry, symbol string, amount int64) (Price, error) {
	c, err := r.Get(symbol)
	if err != nil {
		return Price{}, err
	}
	return Price{Currency: c, Amount: amount}, nil
}
