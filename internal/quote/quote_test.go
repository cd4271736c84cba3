package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func newTestSource(t *testing.T) *HTTPSource {
	return NewHTTPSource(2*time.Second, zaptest.NewLogger(t))
}

// gbk 把UTF-8文本编码为GBK字节，模拟新浪/腾讯接口的响应编码
func gbk(t *testing.T, text string) []byte {
	t.Helper()
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	return encoded
}

func TestMarketOf(t *testing.T) {
	assert.Equal(t, "sh", marketOf("600000"))
	assert.Equal(t, "sh", marketOf("900001"))
	assert.Equal(t, "sz", marketOf("000001"))
	assert.Equal(t, "sz", marketOf("300750"))
}

func TestGetLatestPrice_Sina(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.String(), "list=sh600000")
		w.Write(gbk(t, `var hq_str_sh600000="浦发银行,10.10,10.00,10.55,10.60,10.00";`))
	}))
	defer server.Close()

	s := newTestSource(t)
	s.sinaURL = server.URL

	price, err := s.GetLatestPrice(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, "10.55", price.String())
}

func TestGetLatestPrice_FallbackToTencent(t *testing.T) {
	sina := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("FAILED"))
	}))
	defer sina.Close()

	tencent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.String(), "q=sz000001")
		w.Write(gbk(t, `v_sz000001="51~平安银行~000001~8.20~8.10~8.15";`))
	}))
	defer tencent.Close()

	s := newTestSource(t)
	s.sinaURL = sina.URL
	s.tencentURL = tencent.URL

	price, err := s.GetLatestPrice(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, "8.2", price.String())
}

func TestGetLatestPrice_FallbackToEastmoney(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	eastmoney := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.String(), "secid=1.600000")
		// 价格以分为单位
		w.Write([]byte(`{"data":{"f43":1055}}`))
	}))
	defer eastmoney.Close()

	s := newTestSource(t)
	s.sinaURL = failing.URL
	s.tencentURL = failing.URL
	s.eastmoneyURL = eastmoney.URL

	price, err := s.GetLatestPrice(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, "10.55", price.String())
}

func TestGetLatestPrice_AllSourcesFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	s := newTestSource(t)
	s.sinaURL = failing.URL
	s.tencentURL = failing.URL
	s.eastmoneyURL = failing.URL

	_, err := s.GetLatestPrice(context.Background(), "600000")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetLatestPrice_ZeroPriceNotAccepted(t *testing.T) {
	// 停牌等场景下接口可能返回0，应继续降级而不是采纳
	sina := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gbk(t, `var hq_str_sh600000="浦发银行,10.10,10.00,0.00,10.60,10.00";`))
	}))
	defer sina.Close()

	tencent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gbk(t, `v_sh600000="1~浦发银行~600000~10.55~10.10~10.20";`))
	}))
	defer tencent.Close()

	s := newTestSource(t)
	s.sinaURL = sina.URL
	s.tencentURL = tencent.URL

	price, err := s.GetLatestPrice(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, "10.55", price.String())
}

func TestGetLatestPrice_EastmoneyDecimalPrice(t *testing.T) {
	eastmoney := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"f43":1055.5}}`))
	}))
	defer eastmoney.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	s := newTestSource(t)
	s.sinaURL = failing.URL
	s.tencentURL = failing.URL
	s.eastmoneyURL = eastmoney.URL

	price, err := s.GetLatestPrice(context.Background(), "600000")
	require.NoError(t, err)
	assert.Equal(t, "10.555", price.String())
}
