package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/oms-engine/internal/api/dto"
	"github.com/olyamironova/oms-engine/internal/core"
	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/middleware"
)

var errBadRequest = errors.New("bad request")

// inFlight reserves a client_order_id while its order is being placed.
type inFlight struct{}

type HTTPServer struct {
	Eng         *core.Engine
	log         *zap.Logger
	rateLimit   time.Duration
	corsOrigins []string
	submittedID sync.Map // client_order_id -> order id, or inFlight while placing
}

func NewHTTPServer(eng *core.Engine, log *zap.Logger, rateLimit time.Duration, corsOrigins []string) *HTTPServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPServer{Eng: eng, log: log, rateLimit: rateLimit, corsOrigins: corsOrigins}
}

func (s *HTTPServer) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.log))

	rl := middleware.NewRateLimiter(s.rateLimit)
	r.Use(rl.Middleware())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/portfolio", s.getPortfolio)
	r.GET("/info", s.getInfo)
	r.GET("/orders", s.listOrders)
	r.GET("/orders/:id", s.getOrder)
	r.GET("/fills", s.listFills)
	r.POST("/orders", s.placeOrder)
	r.POST("/orders/:id/cancel", s.cancelOrder)
	r.POST("/snapshot", s.snapshot)
	r.POST("/restore", s.restore)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Client-ID"},
	}).Handler(r)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *HTTPServer) placeOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// deduplication
	if req.ClientOrderID != "" {
		if id, exists := s.submittedID.LoadOrStore(req.ClientOrderID, inFlight{}); exists {
			if _, pending := id.(inFlight); pending {
				c.JSON(http.StatusConflict, gin.H{"error": "order with this client_order_id is being placed"})
				return
			}
			c.JSON(http.StatusOK, dto.PlaceOrderResponse{OrderID: id.(string), Message: "duplicate order"})
			return
		}
	}

	o, err := s.place(c.Request.Context(), &req)
	if err != nil {
		if req.ClientOrderID != "" {
			s.submittedID.Delete(req.ClientOrderID)
		}
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	if req.ClientOrderID != "" {
		s.submittedID.Store(req.ClientOrderID, o.ID)
	}
	rec, _ := s.Eng.Order(o.ID)
	c.JSON(http.StatusOK, dto.PlaceOrderResponse{OrderID: rec.ID, Status: string(rec.Status)})
}

func (s *HTTPServer) place(ctx context.Context, req *dto.PlaceOrderRequest) (*core.Order, error) {
	build, err := s.builder(req)
	if err != nil {
		return nil, err
	}
	return s.Eng.Place(ctx, build)
}

// builder validates req and returns the factory call for its kind.
func (s *HTTPServer) builder(req *dto.PlaceOrderRequest) (func(*core.Portfolio) (*core.Order, error), error) {
	switch req.Kind {
	case dto.KindProportion:
		return s.proportionBuilder(req)
	case dto.KindMarket, dto.KindLimit, dto.KindHiddenLimit, dto.KindRiskManaged, dto.KindBracket:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errBadRequest, req.Kind)
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	pair, err := domain.ParsePair(req.Pair)
	if err != nil {
		return nil, err
	}
	if req.Start != nil && req.End != nil && *req.End < *req.Start {
		return nil, fmt.Errorf("%w: end %d before start %d", errBadRequest, *req.End, *req.Start)
	}
	var opts []core.OrderOption
	if req.Start != nil {
		opts = append(opts, core.WithStart(*req.Start))
	}
	if req.End != nil {
		opts = append(opts, core.WithEnd(*req.End))
	}
	typ := domain.Market
	if req.Type != "" {
		if typ, err = domain.ParseOrderType(req.Type); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	return func(p *core.Portfolio) (*core.Order, error) {
		ex, err := p.Exchange(req.Exchange)
		if err != nil {
			return nil, err
		}
		if !ex.IsPairTradable(pair) {
			return nil, fmt.Errorf("%w: %s on %s", domain.ErrInstrumentOrPairNotFound, pair, ex.Name())
		}
		ep := core.NewExchangePair(ex, pair)
		price, err := priceOrQuote(req.Price, ep)
		if err != nil {
			return nil, err
		}
		switch req.Kind {
		case dto.KindMarket:
			o, err := core.MarketOrder(side, ep, price, req.Size, p)
			if err != nil {
				return nil, err
			}
			for _, opt := range opts {
				opt(o)
			}
			return o, nil
		case dto.KindLimit:
			return core.LimitOrder(side, ep, price, req.Size, p, opts...)
		case dto.KindHiddenLimit:
			return core.HiddenLimitOrder(side, ep, price, req.Size, p, opts...)
		case dto.KindRiskManaged:
			return core.RiskManagedOrder(side, typ, ep, price, req.Size, req.DownPct, req.UpPct, p, opts...)
		case dto.KindBracket:
			return core.BracketOrder(side, typ, ep, price, req.Size, req.DownPct, req.UpPct, p, opts...)
		}
		return nil, fmt.Errorf("%w: unknown kind %q", errBadRequest, req.Kind)
	}, nil
}

func (s *HTTPServer) proportionBuilder(req *dto.PlaceOrderRequest) (func(*core.Portfolio) (*core.Order, error), error) {
	source, err := domain.InstrumentBySymbol(req.Source)
	if err != nil {
		return nil, err
	}
	target, err := domain.InstrumentBySymbol(req.Target)
	if err != nil {
		return nil, err
	}
	return func(p *core.Portfolio) (*core.Order, error) {
		from, err := p.Wallet(req.Exchange, source)
		if err != nil {
			return nil, err
		}
		to, err := p.OpenWallet(req.Exchange, target)
		if err != nil {
			return nil, err
		}
		return core.ProportionOrder(p, from, to, req.Proportion)
	}, nil
}

// priceOrQuote returns the requested price, or the current quote when none
// was given.
func priceOrQuote(price decimal.Decimal, ep core.ExchangePair) (decimal.Decimal, error) {
	if price.IsPositive() {
		return price, nil
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price %s", errBadRequest, price)
	}
	quote := ep.Price()
	if quote.IsInf() {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, ep)
	}
	return quote.Decimal(), nil
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "cancelled by client"
	}
	id := c.Param("id")
	if err := s.Eng.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		c.JSON(statusOf(err), dto.CancelOrderResponse{OrderID: id, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{OrderID: id, Cancelled: true})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	o, err := s.Eng.Order(c.Param("id"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{Order: dto.FromOrder(o)})
}

func (s *HTTPServer) listOrders(c *gin.Context) {
	var statuses []domain.OrderStatus
	for _, st := range c.QueryArray("status") {
		statuses = append(statuses, domain.OrderStatus(st))
	}
	c.JSON(http.StatusOK, dto.ListOrdersResponse{Orders: dto.FromOrders(s.Eng.Orders(statuses...))})
}

func (s *HTTPServer) listFills(c *gin.Context) {
	fills := s.Eng.Fills()
	if orderID := c.Query("order_id"); orderID != "" {
		filtered := fills[:0]
		for _, f := range fills {
			if f.OrderID == orderID {
				filtered = append(filtered, f)
			}
		}
		fills = filtered
	}
	c.JSON(http.StatusOK, dto.ListFillsResponse{Fills: dto.FromFills(fills)})
}

func (s *HTTPServer) getPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FromView(s.Eng.View()))
}

func (s *HTTPServer) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.InfoResponse{Info: dto.FromInfo(s.Eng.Info())})
}

func (s *HTTPServer) snapshot(c *gin.Context) {
	snap, err := s.Eng.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.SnapshotResponse{SnapshotID: snap.ID, Step: snap.Step})
}

func (s *HTTPServer) restore(c *gin.Context) {
	var req dto.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Eng.Restore(c.Request.Context(), req.SnapshotID); err != nil {
		c.JSON(statusOf(err), dto.RestoreResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.RestoreResponse{Ok: true})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound),
		errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrNegativeQuantity),
		errors.Is(err, domain.ErrInvalidPair),
		errors.Is(err, domain.ErrInvalidCriteria),
		errors.Is(err, domain.ErrInvalidProportion),
		errors.Is(err, domain.ErrInstrumentMismatch),
		errors.Is(err, domain.ErrInstrumentOrPairNotFound),
		errors.Is(err, domain.ErrPriceUnavailable),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
