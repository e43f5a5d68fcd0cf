package balanceoracle

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
)

func TestBalanceOfParsesDecimalBody(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("123456789\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	balance, err := c.BalanceOf([]byte("ordi"), []byte{0xde, 0xad})
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(123456789).Cmp(balance))
	require.Equal(t, "6f726469", gotQuery.Get("ticker"))
	require.Equal(t, "dead", gotQuery.Get("pkscript"))
}

func TestBalanceOfRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("oracle unavailable"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.BalanceOf([]byte("ordi"), []byte{0x01})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindTransportExternal))
}

func TestBalanceOfRejectsUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not-a-number"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.BalanceOf([]byte("ordi"), []byte{0x01})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindTransportExternal))
}

func TestBalanceOfRejectsUnreachableHost(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.BalanceOf([]byte("ordi"), []byte{0x01})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindTransportExternal))
}
