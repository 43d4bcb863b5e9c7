// Package wsfeed is a live exchange fed by a websocket stream of OHLCV bars.
// Prices are kept in memory so QuotePrice never blocks on the network.
package wsfeed

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Exchange = (*Feed)(nil)

type Config struct {
	Name      string
	URL       string
	APIKey    string
	APISecret string
	Pairs     []domain.TradingPair
	// Window bounds the bars kept per pair.
	Window      int
	ReadTimeout time.Duration
}

// Bar is the wire form of one streamed candle.
type Bar struct {
	Pair   string          `json:"pair"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	TS     int64           `json:"ts"`
}

type subscribe struct {
	Op    string   `json:"op"`
	Pairs []string `json:"pairs"`
}

type Feed struct {
	cfg  Config
	log  *zap.Logger
	conn *websocket.Conn

	mu    sync.RWMutex
	pairs map[string]bool
	bars  map[string][]domain.OHLCV
	seq   map[string]int64

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Dial connects, subscribes to cfg.Pairs and starts the reader goroutine.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Feed, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 500
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, authHeader(cfg.APIKey, cfg.APISecret, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("wsfeed: dial %s: %w", cfg.URL, err)
	}

	f := &Feed{
		cfg:   cfg,
		log:   log.With(zap.String("exchange", cfg.Name)),
		conn:  conn,
		pairs: make(map[string]bool, len(cfg.Pairs)),
		bars:  make(map[string][]domain.OHLCV),
		seq:   make(map[string]int64),
		done:  make(chan struct{}),
	}
	sub := subscribe{Op: "subscribe"}
	for _, p := range cfg.Pairs {
		f.pairs[p.String()] = true
		sub.Pairs = append(sub.Pairs, p.String())
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("wsfeed: subscribe: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.readPump(readCtx)
	return f, nil
}

// authHeader signs the timestamp with the API secret. No header is sent
// without a key.
func authHeader(key, secret string, now time.Time) http.Header {
	h := http.Header{}
	if key == "" {
		return h
	}
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	h.Set("X-API-KEY", key)
	h.Set("X-API-TIMESTAMP", ts)
	h.Set("X-API-SIGN", hex.EncodeToString(mac.Sum(nil)))
	return h
}

func (f *Feed) readPump(ctx context.Context) {
	defer close(f.done)
	f.conn.SetReadLimit(1 << 20)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = f.conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("feed read stopped", zap.Error(err))
			}
			return
		}
		var bar Bar
		if err := json.Unmarshal(msg, &bar); err != nil {
			f.log.Debug("skip message", zap.Error(err))
			continue
		}
		f.push(bar)
	}
}

func (f *Feed) push(bar Bar) {
	pair, err := domain.ParsePair(bar.Pair)
	if err != nil {
		f.log.Debug("skip bar", zap.String("pair", bar.Pair), zap.Error(err))
		return
	}
	key := pair.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pairs[key] {
		return
	}
	ohlcv := domain.OHLCV{
		Step:   f.seq[key],
		Time:   time.UnixMilli(bar.TS).UTC(),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}
	f.seq[key]++
	bars := append(f.bars[key], ohlcv)
	if len(bars) > f.cfg.Window {
		bars = bars[len(bars)-f.cfg.Window:]
	}
	f.bars[key] = bars
}

func (f *Feed) Name() string { return f.cfg.Name }

func (f *Feed) IsPairTradable(pair domain.TradingPair) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pairs[pair.String()]
}

// QuotePrice returns the latest streamed close.
func (f *Feed) QuotePrice(pair domain.TradingPair) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bars := f.bars[pair.String()]
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no bars for %s on %s", domain.ErrPriceUnavailable, pair, f.cfg.Name)
	}
	return bars[len(bars)-1].Close, nil
}

func (f *Feed) FetchWindow(ctx context.Context, pair domain.TradingPair, size int) ([]domain.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.pairs[pair.String()] {
		return nil, fmt.Errorf("%w: %s not subscribed on %s", domain.ErrInstrumentOrPairNotFound, pair, f.cfg.Name)
	}
	if size <= 0 {
		return []domain.OHLCV{}, nil
	}
	bars := f.bars[pair.String()]
	from := len(bars) - size
	if from < 0 {
		from = 0
	}
	return append([]domain.OHLCV(nil), bars[from:]...), nil
}

// Close stops the reader and closes the connection.
func (f *Feed) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = f.conn.Close()
		<-f.done
	})
	return err
}
