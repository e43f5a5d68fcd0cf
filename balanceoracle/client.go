// Package balanceoracle is the HTTP client for the external BRC20
// balance service of spec.md §4.6, grounded on
// original_source/src/engine/precompiles/brc20_balance_precompile.rs's
// get_brc20_balance (GET ?ticker=<hex>&pkscript=<hex>, decimal-string
// u128 body).
package balanceoracle

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
)

// Client queries the balance oracle for a ticker/pkscript pair.
type Client interface {
	BalanceOf(ticker, pkscript []byte) (*big.Int, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against the configured balance-oracle base
// URL (spec.md §6's BRC20_PROG_BALANCE_SERVER_URL).
func New(baseURL string) Client {
	return &httpClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *httpClient) BalanceOf(ticker, pkscript []byte) (*big.Int, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransportExternal, "balanceoracle: invalid base url", err)
	}
	q := u.Query()
	q.Set("ticker", hex.EncodeToString(ticker))
	q.Set("pkscript", hex.EncodeToString(pkscript))
	u.RawQuery = q.Encode()

	resp, err := c.http.Get(u.String())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransportExternal, "balanceoracle: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransportExternal, "balanceoracle: reading response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.New(apperrors.KindTransportExternal,
			fmt.Sprintf("balanceoracle: non-2xx response: %d: %s", resp.StatusCode, string(body)))
	}

	balance, ok := new(big.Int).SetString(string(trimNewline(body)), 10)
	if !ok {
		return nil, apperrors.New(apperrors.KindTransportExternal,
			fmt.Sprintf("balanceoracle: unparseable balance: %q", string(body)))
	}
	return balance, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
