package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"svetafor/backend/internal/cache"
	"svetafor/backend/internal/cart"
	"svetafor/backend/internal/currency"
	"svetafor/backend/internal/domain"
	"svetafor/backend/internal/store"
	"svetafor/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	carts          *cart.Manager
	summaries      cache.SummaryCache
	summaryTTL     time.Duration
	defaultStoreID string
}

func New(repo store.Repository, carts *cart.Manager, summaries cache.SummaryCache, defaultStoreID string, summaryTTL time.Duration) *Service {
	if carts == nil {
		carts = cart.NewManager(nil)
	}
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	if defaultStoreID == "" {
		defaultStoreID = "store-main"
	}

	return &Service{
		repo:           repo,
		carts:          carts,
		summaries:      summaries,
		summaryTTL:     summaryTTL,
		defaultStoreID: defaultStoreID,
	}
}

// ErrForbidden means the actor's role does not allow the operation.
var ErrForbidden = errors.New("admin role required")

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func parseCents(raw string) (int64, error) {
	value, err := currency.ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return toCents(value), nil
}

func validCartKind(kind string) bool {
	return kind == domain.CartKindOrder || kind == domain.CartKindDebt
}

// storeRate returns the configured USD/UZS rate for the store, or zero when
// no rate has been set yet. A zero rate makes conversions pass amounts
// through unchanged.
func (s *Service) storeRate(ctx context.Context, storeID string) float64 {
	rate, err := s.repo.GetExchangeRate(ctx, storeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: exchange rate lookup failed store=%s: %v", storeID, err)
		}
		return 0
	}
	return rate.Rate
}

func (s *Service) ListProducts(ctx context.Context, storeID string, query string, limit int) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, storeID, strings.TrimSpace(query), limit)
}

func (s *Service) GetProduct(ctx context.Context, storeID string, productID string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, storeID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, storeID string, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Articul = strings.TrimSpace(req.Articul)
	req.Brand = strings.TrimSpace(req.Brand)
	if req.Name == "" || req.Articul == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Currency == "" {
		req.Currency = domain.CurrencyUZS
	}
	if req.Count < 0 || req.WarehouseCount < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	inPriceCents, err := parseCents(req.InPrice)
	if err != nil {
		return domain.Product{}, store.ErrInvalidInput
	}
	outPriceCents, err := parseCents(req.OutPrice)
	if err != nil {
		return domain.Product{}, store.ErrInvalidInput
	}
	if inPriceCents < 0 || outPriceCents < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		ID:             xid.New("prod"),
		StoreID:        storeID,
		Name:           req.Name,
		Articul:        req.Articul,
		Brand:          req.Brand,
		Category:       strings.TrimSpace(req.Category),
		InPriceCents:   inPriceCents,
		OutPriceCents:  outPriceCents,
		Currency:       req.Currency,
		Count:          req.Count,
		WarehouseCount: req.WarehouseCount,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, storeID, "product_create", "product", created.ID,
		fmt.Sprintf("articul=%s,out_price=%d,currency=%s", created.Articul, created.OutPriceCents, created.Currency))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, storeID string, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, storeID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := *existing

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Articul != nil {
		product.Articul = strings.TrimSpace(*req.Articul)
	}
	if req.Brand != nil {
		product.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Currency != nil {
		product.Currency = *req.Currency
	}
	if req.InPrice != nil {
		cents, err := parseCents(*req.InPrice)
		if err != nil || cents < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		product.InPriceCents = cents
	}
	if req.OutPrice != nil {
		cents, err := parseCents(*req.OutPrice)
		if err != nil || cents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		product.OutPriceCents = cents
	}
	if req.Count != nil {
		if *req.Count < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		product.Count = *req.Count
	}
	if req.WarehouseCount != nil {
		if *req.WarehouseCount < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		product.WarehouseCount = *req.WarehouseCount
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if product.Name == "" || product.Articul == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, storeID, "product_update", "product", saved.ID,
		fmt.Sprintf("active=%t,out_price=%d,count=%d", saved.Active, saved.OutPriceCents, saved.Count))

	return *saved, nil
}

// buildLine resolves a boundary line request into a working cart line,
// capturing the product snapshot once. The snapshot keeps the prices that
// were in effect when the line was added.
func (s *Service) buildLine(ctx context.Context, storeID string, req domain.CartLineRequest) (domain.CartLine, error) {
	req.Product = strings.TrimSpace(req.Product)
	if req.Product == "" {
		return domain.CartLine{}, store.ErrInvalidInput
	}

	product, err := s.repo.GetProductByID(ctx, storeID, req.Product)
	if err != nil {
		return domain.CartLine{}, err
	}

	lineCurrency := req.Currency
	if lineCurrency == "" {
		lineCurrency = product.Currency
	}

	priceCents := product.OutPriceCents
	if strings.TrimSpace(req.Price) != "" {
		priceCents, err = parseCents(req.Price)
		if err != nil || priceCents < 0 {
			return domain.CartLine{}, store.ErrInvalidInput
		}
	}

	quantity, err := currency.ParseDecimal(req.Quantity)
	if err != nil || quantity <= 0 {
		return domain.CartLine{}, store.ErrInvalidInput
	}

	return domain.CartLine{
		ProductID: product.ID,
		Snapshot: domain.ProductSnapshot{
			Name:           product.Name,
			Articul:        product.Articul,
			Brand:          product.Brand,
			Category:       product.Category,
			InPriceCents:   product.InPriceCents,
			OutPriceCents:  product.OutPriceCents,
			Currency:       product.Currency,
			Count:          product.Count,
			WarehouseCount: product.WarehouseCount,
		},
		Currency:   lineCurrency,
		PriceCents: priceCents,
		Quantity:   quantity,
	}, nil
}

// reviseLine applies an edit request on top of an existing line. The add-time
// snapshot is kept, and omitted price/currency/quantity keep the line's values
// instead of falling back to the catalog. Naming a different product rebuilds
// the line from scratch.
func (s *Service) reviseLine(ctx context.Context, storeID string, existing domain.CartLine, req domain.CartLineRequest) (domain.CartLine, error) {
	req.Product = strings.TrimSpace(req.Product)
	if req.Product != "" && req.Product != existing.ProductID {
		return s.buildLine(ctx, storeID, req)
	}

	line := existing
	if req.Currency != "" {
		line.Currency = req.Currency
	}
	if strings.TrimSpace(req.Price) != "" {
		priceCents, err := parseCents(req.Price)
		if err != nil || priceCents < 0 {
			return domain.CartLine{}, store.ErrInvalidInput
		}
		line.PriceCents = priceCents
	}
	if strings.TrimSpace(req.Quantity) != "" {
		quantity, err := currency.ParseDecimal(req.Quantity)
		if err != nil || quantity <= 0 {
			return domain.CartLine{}, store.ErrInvalidInput
		}
		line.Quantity = quantity
	}
	return line, nil
}

func (s *Service) GetCart(ctx context.Context, storeID, terminalID, kind string) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	return s.carts.Get(ctx, storeID, terminalID, kind), nil
}

func (s *Service) AddCartLine(ctx context.Context, storeID, terminalID, kind string, req domain.CartLineRequest) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	line, err := s.buildLine(ctx, storeID, req)
	if err != nil {
		return cart.Session{}, err
	}
	return s.carts.AddLine(ctx, storeID, terminalID, kind, line), nil
}

func (s *Service) UpdateCartLine(ctx context.Context, storeID, terminalID, kind string, index int, req domain.CartLineRequest) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	session := s.carts.Get(ctx, storeID, terminalID, kind)
	if index < 0 || index >= len(session.Lines) {
		return session, cart.ErrLineIndex
	}
	line, err := s.reviseLine(ctx, storeID, session.Lines[index], req)
	if err != nil {
		return cart.Session{}, err
	}
	return s.carts.UpdateLine(ctx, storeID, terminalID, kind, index, line)
}

func (s *Service) RemoveCartLine(ctx context.Context, storeID, terminalID, kind string, index int) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	return s.carts.RemoveLine(ctx, storeID, terminalID, kind, index)
}

func (s *Service) BeginCartLineAdd(ctx context.Context, storeID, terminalID, kind string, req domain.CartLineRequest) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	line, err := s.buildLine(ctx, storeID, req)
	if err != nil {
		return cart.Session{}, err
	}
	return s.carts.BeginAdd(ctx, storeID, terminalID, kind, line), nil
}

func (s *Service) BeginCartLineEdit(ctx context.Context, storeID, terminalID, kind string, index int) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	return s.carts.BeginEdit(ctx, storeID, terminalID, kind, index)
}

func (s *Service) SaveEditingCartLine(ctx context.Context, storeID, terminalID, kind string, req domain.CartLineRequest) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	session := s.carts.Get(ctx, storeID, terminalID, kind)
	if session.Editing == nil {
		return session, cart.ErrNotEditing
	}
	line, err := s.reviseLine(ctx, storeID, *session.Editing, req)
	if err != nil {
		return cart.Session{}, err
	}
	return s.carts.SaveEditing(ctx, storeID, terminalID, kind, line)
}

func (s *Service) CancelCartLineEditing(ctx context.Context, storeID, terminalID, kind string) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	return s.carts.CancelEditing(ctx, storeID, terminalID, kind), nil
}

func (s *Service) UpdateCartHeader(ctx context.Context, storeID, terminalID, kind string, req domain.HeaderUpdateRequest) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}

	session := s.carts.Get(ctx, storeID, terminalID, kind)
	header := session.Header

	if req.CustomerPhone != nil {
		header.CustomerPhone = strings.TrimSpace(*req.CustomerPhone)
	}
	if req.CustomerName != nil {
		header.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.PaymentMethod != nil {
		method := *req.PaymentMethod
		if method != domain.PaymentCash && method != domain.PaymentCard && method != domain.PaymentTransfer {
			return cart.Session{}, store.ErrInvalidInput
		}
		header.PaymentMethod = method
	}
	if req.Currency != nil {
		header.Currency = *req.Currency
	}
	if req.Paid != nil {
		cents, err := parseCents(*req.Paid)
		if err != nil || cents < 0 {
			return cart.Session{}, store.ErrInvalidInput
		}
		header.PaidCents = cents
	}
	if req.ChangeGiven != nil {
		header.ChangeGiven = *req.ChangeGiven
	}
	if req.Change != nil {
		cents, err := parseCents(*req.Change)
		if err != nil || cents < 0 {
			return cart.Session{}, store.ErrInvalidInput
		}
		header.ChangeCents = cents
	}
	if req.ChangeCurrency != nil {
		header.ChangeCurrency = *req.ChangeCurrency
	}
	if req.Comment != nil {
		header.Comment = strings.TrimSpace(*req.Comment)
	}

	return s.carts.SetHeader(ctx, storeID, terminalID, kind, header), nil
}

func (s *Service) ResetCart(ctx context.Context, storeID, terminalID, kind string) (cart.Session, error) {
	if !validCartKind(kind) {
		return cart.Session{}, store.ErrInvalidInput
	}
	return s.carts.Reset(ctx, storeID, terminalID, kind), nil
}

// cartTotalCents sums the cart lines in the document currency using the
// store's USD/UZS rate. Lines priced in another currency are converted at
// that single rate.
func cartTotalCents(lines []domain.CartLine, docCurrency domain.Currency, rate float64) int64 {
	total := 0.0
	for _, line := range lines {
		amount := float64(line.PriceCents) / 100 * line.Quantity
		total += currency.Convert(amount, line.Currency, rate, docCurrency)
	}
	return toCents(total)
}

// checkStock verifies every cart line fits within the shelf plus warehouse
// counts of its current product record.
func (s *Service) checkStock(ctx context.Context, storeID string, lines []domain.CartLine) error {
	for _, line := range lines {
		product, err := s.repo.GetProductByID(ctx, storeID, line.ProductID)
		if err != nil {
			return err
		}
		need := int(math.Ceil(line.Quantity))
		if need > product.Count+product.WarehouseCount {
			return store.ErrInsufficientStock
		}
	}
	return nil
}

// drainStock decrements stock for sold lines, taking from the shelf count
// first and the warehouse for the remainder. Failures are logged, not
// returned: the document is already written at this point.
func (s *Service) drainStock(ctx context.Context, storeID string, lines []domain.CartLine) {
	for _, line := range lines {
		product, err := s.repo.GetProductByID(ctx, storeID, line.ProductID)
		if err != nil {
			log.Printf("[service] WARN: stock drain lookup failed product=%s: %v", line.ProductID, err)
			continue
		}
		need := int(math.Ceil(line.Quantity))
		fromCount := need
		if fromCount > product.Count {
			fromCount = product.Count
		}
		fromWarehouse := need - fromCount
		if err := s.repo.AdjustStock(ctx, storeID, line.ProductID, -fromCount, -fromWarehouse); err != nil {
			log.Printf("[service] WARN: stock drain failed product=%s need=%d: %v", line.ProductID, need, err)
		}
	}
}

func (s *Service) SubmitOrder(ctx context.Context, storeID, terminalID string) (domain.Order, error) {
	session := s.carts.BeginSubmit(ctx, storeID, terminalID, domain.CartKindOrder)
	if len(session.Lines) == 0 {
		s.carts.CancelSubmit(ctx, storeID, terminalID, domain.CartKindOrder)
		return domain.Order{}, store.ErrInvalidInput
	}

	if err := s.checkStock(ctx, storeID, session.Lines); err != nil {
		s.carts.CancelSubmit(ctx, storeID, terminalID, domain.CartKindOrder)
		return domain.Order{}, err
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	rate := s.storeRate(ctx, storeID)
	header := session.Header
	now := time.Now().UTC()
	totalCents := cartTotalCents(session.Lines, header.Currency, rate)

	// When the seller marks change as given without typing an amount, it is
	// paid minus total, converted into the change currency.
	if header.ChangeGiven && header.ChangeCents == 0 && header.PaidCents > totalCents {
		overpay := float64(header.PaidCents-totalCents) / 100
		header.ChangeCents = toCents(currency.Convert(overpay, header.Currency, rate, header.ChangeCurrency))
	}

	order := domain.Order{
		ID:             xid.New("order"),
		Number:         xid.Number("S", now),
		StoreID:        storeID,
		TerminalID:     terminalID,
		SellerUsername: actor.Username,
		CustomerPhone:  header.CustomerPhone,
		CustomerName:   header.CustomerName,
		PaymentMethod:  header.PaymentMethod,
		Currency:       header.Currency,
		Rate:           rate,
		TotalCents:     totalCents,
		PaidCents:      header.PaidCents,
		ChangeGiven:    header.ChangeGiven,
		ChangeCents:    header.ChangeCents,
		ChangeCurrency: header.ChangeCurrency,
		Status:         domain.OrderStatusCompleted,
		CreatedAt:      now,
		Lines:          session.Lines,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		// The cart stays intact so the seller can retry the submission.
		s.carts.CancelSubmit(ctx, storeID, terminalID, domain.CartKindOrder)
		return domain.Order{}, err
	}

	s.drainStock(ctx, storeID, created.Lines)
	s.carts.Reset(ctx, storeID, terminalID, domain.CartKindOrder)

	s.logAudit(ctx, storeID, "order_submit", "order", created.ID,
		fmt.Sprintf("number=%s,total=%d,currency=%s,lines=%d", created.Number, created.TotalCents, created.Currency, len(created.Lines)))

	return *created, nil
}

func (s *Service) GetOrder(ctx context.Context, storeID string, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, storeID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, storeID string, date string, limit int) ([]domain.Order, error) {
	from, to, err := dayBounds(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListOrders(ctx, storeID, from, to, limit)
}

func (s *Service) CancelOrder(ctx context.Context, storeID string, orderID string) (domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Order{}, err
	}

	cancelled, err := s.repo.CancelOrder(ctx, storeID, orderID, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	// Cancelled goods go back on the shelf.
	for _, line := range cancelled.Lines {
		need := int(math.Ceil(line.Quantity))
		if err := s.repo.AdjustStock(ctx, storeID, line.ProductID, need, 0); err != nil {
			log.Printf("[service] WARN: stock restore failed product=%s: %v", line.ProductID, err)
		}
	}

	s.logAudit(ctx, storeID, "order_cancel", "order", cancelled.ID,
		fmt.Sprintf("number=%s,total=%d", cancelled.Number, cancelled.TotalCents))

	return *cancelled, nil
}

func (s *Service) CreateDebtor(ctx context.Context, storeID string, req domain.DebtorCreateRequest) (domain.Debtor, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Debtor{}, store.ErrInvalidInput
	}

	debtor := domain.Debtor{
		ID:        xid.New("debtor"),
		StoreID:   storeID,
		Name:      req.Name,
		Phone:     req.Phone,
		Currency:  domain.CurrencyUZS,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateDebtor(ctx, debtor)
	if err != nil {
		return domain.Debtor{}, err
	}

	s.logAudit(ctx, storeID, "debtor_create", "debtor", created.ID, fmt.Sprintf("name=%s", created.Name))

	return *created, nil
}

func (s *Service) GetDebtor(ctx context.Context, storeID string, debtorID string) (domain.Debtor, error) {
	debtor, err := s.repo.GetDebtorByID(ctx, storeID, debtorID)
	if err != nil {
		return domain.Debtor{}, err
	}
	return *debtor, nil
}

func (s *Service) ListDebtors(ctx context.Context, storeID string, limit int) ([]domain.Debtor, error) {
	return s.repo.ListDebtors(ctx, storeID, limit)
}

func (s *Service) SubmitDebtDocument(ctx context.Context, storeID string, debtorID string, req domain.SubmitDebtDocumentRequest) (domain.DebtDocument, error) {
	if req.Kind != domain.DebtDocIn && req.Kind != domain.DebtDocOut {
		return domain.DebtDocument{}, store.ErrInvalidInput
	}

	debtor, err := s.repo.GetDebtorByID(ctx, storeID, debtorID)
	if err != nil {
		return domain.DebtDocument{}, err
	}

	session := s.carts.BeginSubmit(ctx, storeID, req.TerminalID, domain.CartKindDebt)
	if len(session.Lines) == 0 {
		s.carts.CancelSubmit(ctx, storeID, req.TerminalID, domain.CartKindDebt)
		return domain.DebtDocument{}, store.ErrInvalidInput
	}

	if req.Kind == domain.DebtDocOut {
		if err := s.checkStock(ctx, storeID, session.Lines); err != nil {
			s.carts.CancelSubmit(ctx, storeID, req.TerminalID, domain.CartKindDebt)
			return domain.DebtDocument{}, err
		}
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	rate := s.storeRate(ctx, storeID)
	header := session.Header
	now := time.Now().UTC()
	totalCents := cartTotalCents(session.Lines, header.Currency, rate)

	doc := domain.DebtDocument{
		ID:             xid.New("debtdoc"),
		Number:         xid.Number("D", now),
		StoreID:        storeID,
		DebtorID:       debtor.ID,
		Kind:           req.Kind,
		SellerUsername: actor.Username,
		PaymentMethod:  header.PaymentMethod,
		Currency:       header.Currency,
		Rate:           rate,
		TotalCents:     totalCents,
		Comment:        strings.TrimSpace(req.Comment),
		CreatedAt:      now,
		Lines:          session.Lines,
	}

	created, err := s.repo.CreateDebtDocument(ctx, doc)
	if err != nil {
		s.carts.CancelSubmit(ctx, storeID, req.TerminalID, domain.CartKindDebt)
		return domain.DebtDocument{}, err
	}

	// The balance moves in the debtor's own currency. "out" releases goods
	// on credit and raises the balance, "in" is a repayment and lowers it.
	balanceDelta := toCents(currency.Convert(float64(totalCents)/100, header.Currency, rate, debtor.Currency))
	if req.Kind == domain.DebtDocIn {
		balanceDelta = -balanceDelta
	}
	if _, err := s.repo.AdjustDebtorBalance(ctx, storeID, debtor.ID, balanceDelta); err != nil {
		log.Printf("[service] WARN: debtor balance adjust failed debtor=%s delta=%d: %v", debtor.ID, balanceDelta, err)
	}

	if req.Kind == domain.DebtDocOut {
		s.drainStock(ctx, storeID, created.Lines)
	}
	s.carts.Reset(ctx, storeID, req.TerminalID, domain.CartKindDebt)

	s.logAudit(ctx, storeID, "debt_document_submit", "debt_document", created.ID,
		fmt.Sprintf("number=%s,kind=%s,total=%d,debtor=%s", created.Number, created.Kind, created.TotalCents, created.DebtorID))

	return *created, nil
}

func (s *Service) ListDebtDocuments(ctx context.Context, storeID string, debtorID string, limit int) ([]domain.DebtDocument, error) {
	return s.repo.ListDebtDocuments(ctx, storeID, debtorID, limit)
}

func (s *Service) GetExchangeRate(ctx context.Context, storeID string) (domain.ExchangeRate, error) {
	rate, err := s.repo.GetExchangeRate(ctx, storeID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ExchangeRate{StoreID: storeID}, nil
	}
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	return *rate, nil
}

func (s *Service) SetExchangeRate(ctx context.Context, storeID string, req domain.ExchangeRateUpdateRequest) (domain.ExchangeRate, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ExchangeRate{}, err
	}

	value, err := currency.ParseDecimal(req.Rate)
	if err != nil || value <= 0 {
		return domain.ExchangeRate{}, store.ErrInvalidInput
	}

	actor, _ := ActorFromContext(ctx)

	saved, err := s.repo.SetExchangeRate(ctx, domain.ExchangeRate{
		StoreID:   storeID,
		Rate:      value,
		UpdatedBy: actor.Username,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.ExchangeRate{}, err
	}

	s.logAudit(ctx, storeID, "exchange_rate_set", "exchange_rate", storeID, fmt.Sprintf("rate=%.2f", saved.Rate))

	return *saved, nil
}

func formatQuantity(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', -1, 64)
}

func (s *Service) BuildReceipt(ctx context.Context, storeID string, orderID string) (domain.ReceiptResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, storeID, orderID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	lines := []string{
		"SVETAFOR AUTO PARTS",
		"========================",
		"Chek: " + order.Number,
		"Do'kon: " + order.StoreID,
		"Sotuvchi: " + order.SellerUsername,
		"Sana: " + order.CreatedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, line := range order.Lines {
		amount := float64(line.PriceCents) / 100 * line.Quantity
		lines = append(lines, fmt.Sprintf("%s (%s)", line.Snapshot.Name, line.Snapshot.Articul))
		lines = append(lines, fmt.Sprintf("  %s x %s = %s",
			currency.Format(float64(line.PriceCents)/100, line.Currency),
			formatQuantity(line.Quantity),
			currency.Format(amount, line.Currency)))
	}
	lines = append(lines,
		"------------------------",
		"Jami   : "+currency.Format(float64(order.TotalCents)/100, order.Currency),
		"To'lov : "+currency.Format(float64(order.PaidCents)/100, order.Currency),
	)
	if order.ChangeGiven {
		lines = append(lines, "Qaytim : "+currency.Format(float64(order.ChangeCents)/100, order.ChangeCurrency))
	}
	lines = append(lines,
		"========================",
		"Xaridingiz uchun rahmat!",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptResponse{
		OrderID:      order.ID,
		PreviewText:  strings.Join(lines, "\n"),
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		FileName:     fmt.Sprintf("receipt-%s.bin", order.ID),
	}, nil
}

func dayBounds(date string) (time.Time, time.Time, error) {
	if date == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return from, from.Add(24 * time.Hour), nil
	}
	from, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.Add(24 * time.Hour), nil
}

func (s *Service) DailySalesSummary(ctx context.Context, storeID string, date string) (domain.SalesSummary, error) {
	from, to, err := dayBounds(date)
	if err != nil {
		return domain.SalesSummary{}, store.ErrInvalidInput
	}
	day := from.Format("2006-01-02")
	key := fmt.Sprintf("summary:%s:%s", storeID, day)

	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	summary, err := s.repo.GetSalesSummary(ctx, storeID, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	summary.StoreID = storeID
	summary.Date = day
	summary.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed key=%s: %v", key, err)
	}

	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	from, to, err := dayBounds(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) CreateSeller(ctx context.Context, req domain.SellerCreateRequest) (domain.SellerUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.SellerUser{}, err
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 || len(req.Stores) == 0 {
		return domain.SellerUser{}, store.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.SellerUser{}, err
	}

	account := domain.UserAccount{
		Username:  req.Username,
		Password:  string(hash),
		Role:      domain.RoleSeller,
		Stores:    req.Stores,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return domain.SellerUser{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "seller_create", "user", account.Username,
		fmt.Sprintf("stores=%s", strings.Join(account.Stores, "|")))

	return domain.SellerUser{
		Username:  account.Username,
		Role:      account.Role,
		Stores:    account.Stores,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}, nil
}

func (s *Service) ListSellers(ctx context.Context) ([]domain.SellerUser, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	sellers := make([]domain.SellerUser, 0, len(accounts))
	for _, account := range accounts {
		if account.Role != domain.RoleSeller {
			continue
		}
		sellers = append(sellers, domain.SellerUser{
			Username:  account.Username,
			Role:      account.Role,
			Stores:    account.Stores,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return sellers, nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
