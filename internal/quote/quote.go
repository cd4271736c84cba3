package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrUnavailable 所有行情源都未能给出有效价格。
// 调用方应把它当作本轮跳过处理，而不是致命错误。
var ErrUnavailable = errors.New("无法获取实时价格")

// Source 行情源接口
type Source interface {
	// GetLatestPrice 获取股票最新价格，获取失败时返回 ErrUnavailable
	GetLatestPrice(ctx context.Context, stockCode string) (decimal.Decimal, error)
}

// 默认行情接口地址
const (
	defaultSinaURL      = "https://hq.sinajs.cn"
	defaultTencentURL   = "https://qt.gtimg.cn"
	defaultEastmoneyURL = "https://push2.eastmoney.com"
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// HTTPSource 基于公开行情接口的行情源，按新浪→腾讯→东方财富顺序降级
type HTTPSource struct {
	client       *http.Client
	logger       *zap.Logger
	sinaURL      string
	tencentURL   string
	eastmoneyURL string
}

// NewHTTPSource 创建HTTP行情源
func NewHTTPSource(timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
		sinaURL:      defaultSinaURL,
		tencentURL:   defaultTencentURL,
		eastmoneyURL: defaultEastmoneyURL,
	}
}

// marketOf 按代码前缀判断市场：6/9开头为上海，其余为深圳
func marketOf(stockCode string) string {
	if strings.HasPrefix(stockCode, "6") || strings.HasPrefix(stockCode, "9") {
		return "sh"
	}
	return "sz"
}

// GetLatestPrice 依次尝试各行情源，全部失败时返回 ErrUnavailable
func (s *HTTPSource) GetLatestPrice(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	type fetcher struct {
		name string
		fn   func(ctx context.Context, stockCode string) (decimal.Decimal, error)
	}
	for _, f := range []fetcher{
		{"sina", s.fetchSina},
		{"tencent", s.fetchTencent},
		{"eastmoney", s.fetchEastmoney},
	} {
		price, err := f.fn(ctx, stockCode)
		if err == nil && price.IsPositive() {
			s.logger.Debug("获取到股票最新价格",
				zap.String("source", f.name),
				zap.String("stock_code", stockCode),
				zap.String("price", price.String()))
			return price, nil
		}
		if err != nil {
			s.logger.Debug("行情源获取失败",
				zap.String("source", f.name),
				zap.String("stock_code", stockCode),
				zap.Error(err))
		}
	}

	s.logger.Warn("无法从任何数据源获取实时价格", zap.String("stock_code", stockCode))
	return decimal.Zero, ErrUnavailable
}

func (s *HTTPSource) get(ctx context.Context, url, referer string, gbk bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Referer", referer)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("行情接口返回状态码 %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if gbk {
		// 新浪和腾讯的行情接口使用GBK编码
		reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *HTTPSource) fetchSina(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/list=%s%s", s.sinaURL, marketOf(stockCode), stockCode)
	body, err := s.get(ctx, url, "https://finance.sina.com.cn", true)
	if err != nil {
		return decimal.Zero, err
	}
	if strings.Contains(body, "FAILED") {
		return decimal.Zero, fmt.Errorf("新浪接口返回失败标记")
	}

	parts := strings.SplitN(body, "=", 2)
	if len(parts) < 2 {
		return decimal.Zero, fmt.Errorf("无法解析新浪行情数据")
	}
	fields := strings.Split(strings.Trim(strings.TrimSpace(parts[1]), `";`), ",")
	if len(fields) <= 3 {
		return decimal.Zero, fmt.Errorf("新浪行情字段不足")
	}
	// 当前价格在第4个字段
	return decimal.NewFromString(fields[3])
}

func (s *HTTPSource) fetchTencent(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/q=%s%s", s.tencentURL, marketOf(stockCode), stockCode)
	body, err := s.get(ctx, url, "https://finance.qq.com", true)
	if err != nil {
		return decimal.Zero, err
	}
	if !strings.Contains(body, "v_") {
		return decimal.Zero, fmt.Errorf("腾讯接口未返回有效数据")
	}

	fields := strings.Split(body, "~")
	if len(fields) <= 3 {
		return decimal.Zero, fmt.Errorf("腾讯行情字段不足")
	}
	return decimal.NewFromString(fields[3])
}

func (s *HTTPSource) fetchEastmoney(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	marketID := "0"
	if marketOf(stockCode) == "sh" {
		marketID = "1"
	}
	url := fmt.Sprintf("%s/api/qt/stock/get?secid=%s.%s&fields=f43", s.eastmoneyURL, marketID, stockCode)
	body, err := s.get(ctx, url, "https://quote.eastmoney.com", false)
	if err != nil {
		return decimal.Zero, err
	}

	var payload struct {
		Data map[string]json.Number `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return decimal.Zero, fmt.Errorf("解析东方财富行情数据失败: %w", err)
	}
	raw, ok := payload.Data["f43"]
	if !ok {
		return decimal.Zero, fmt.Errorf("东方财富行情缺少价格字段")
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("解析东方财富价格失败: %w", err)
	}
	// 东方财富的价格以分为单位
	return price.Div(decimal.NewFromInt(100)), nil
}
