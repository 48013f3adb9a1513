package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"svetafor/backend/internal/domain"
	"svetafor/backend/internal/store"
	"svetafor/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	ordersByID      map[string]domain.Order
	debtorsByID     map[string]domain.Debtor
	debtDocsByID    map[string]domain.DebtDocument
	ratesByStore    map[string]domain.ExchangeRate
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. Production runs use
// PostgreSQL (DATABASE_URL set) and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		stores   []string
	}{
		{"admin", adminPwd, domain.RoleAdmin, nil},
		{"seller", sellerPwd, domain.RoleSeller, []string{"store-main"}},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Stores:    u.stores,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-brake-gm", StoreID: "store-main", Name: "Brake pad set Nexia", Articul: "96273708", Brand: "GM", Category: "brakes", InPriceCents: 1200, OutPriceCents: 1800, Currency: domain.CurrencyUSD, Count: 12, WarehouseCount: 30, Active: true, CreatedAt: now},
		{ID: "prod-oil-mann", StoreID: "store-main", Name: "Oil filter W 914/2", Articul: "W914/2", Brand: "MANN", Category: "filters", InPriceCents: 3500000, OutPriceCents: 5500000, Currency: domain.CurrencyUZS, Count: 40, WarehouseCount: 80, Active: true, CreatedAt: now},
		{ID: "prod-spark-ngk", StoreID: "store-main", Name: "Spark plug BPR6ES", Articul: "BPR6ES", Brand: "NGK", Category: "ignition", InPriceCents: 1800000, OutPriceCents: 2800000, Currency: domain.CurrencyUZS, Count: 60, WarehouseCount: 200, Active: true, CreatedAt: now},
		{ID: "prod-shock-kyb", StoreID: "store-main", Name: "Shock absorber front Lacetti", Articul: "333418", Brand: "KYB", Category: "suspension", InPriceCents: 2500, OutPriceCents: 3900, Currency: domain.CurrencyUSD, Count: 6, WarehouseCount: 10, Active: true, CreatedAt: now},
		{ID: "prod-belt-gates", StoreID: "store-main", Name: "Timing belt kit Cobalt", Articul: "K015603XS", Brand: "Gates", Category: "engine", InPriceCents: 4200, OutPriceCents: 6500, Currency: domain.CurrencyUSD, Count: 4, WarehouseCount: 9, Active: true, CreatedAt: now},
		{ID: "prod-lamp-osram", StoreID: "store-main", Name: "Headlight bulb H4 12V", Articul: "64193", Brand: "Osram", Category: "lighting", InPriceCents: 450000, OutPriceCents: 900000, Currency: domain.CurrencyUZS, Count: 100, WarehouseCount: 150, Active: true, CreatedAt: now},
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	debtors := map[string]domain.Debtor{
		"debtor-karim": {ID: "debtor-karim", StoreID: "store-main", Name: "Karim aka", Phone: "+998901112233", BalanceCents: 45000000, Currency: domain.CurrencyUZS, CreatedAt: now},
	}

	return &Store{
		products:     byID,
		ordersByID:   map[string]domain.Order{},
		debtorsByID:  debtors,
		debtDocsByID: map[string]domain.DebtDocument{},
		ratesByStore: map[string]domain.ExchangeRate{
			"store-main": {StoreID: "store-main", Rate: 12650, UpdatedBy: "seed", UpdatedAt: now},
		},
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, storeID string, query string, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 200
	}
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID != storeID || !p.Active {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Articul), query) &&
			!strings.Contains(strings.ToLower(p.Brand), query) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Category == products[j].Category {
			return products[i].Name < products[j].Name
		}
		return products[i].Category < products[j].Category
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, storeID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.StoreID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok || existing.StoreID != product.StoreID {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) AdjustStock(_ context.Context, storeID string, productID string, countDelta int, warehouseDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return store.ErrNotFound
	}
	if p.Count+countDelta < 0 || p.WarehouseCount+warehouseDelta < 0 {
		return store.ErrInsufficientStock
	}
	p.Count += countDelta
	p.WarehouseCount += warehouseDelta
	s.products[productID] = p
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || order.StoreID == "" || len(order.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrConflict
	}
	order.Lines = append([]domain.CartLine(nil), order.Lines...)
	s.ordersByID[order.ID] = order
	return &order, nil
}

func (s *Store) GetOrderByID(_ context.Context, storeID string, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[orderID]
	if !ok || order.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, 32)
	for _, order := range s.ordersByID {
		if order.StoreID != storeID {
			continue
		}
		if !from.IsZero() && order.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !order.CreatedAt.Before(to) {
			continue
		}
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) CancelOrder(_ context.Context, storeID string, orderID string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[orderID]
	if !ok || order.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, store.ErrInvalidInput
	}
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &at
	s.ordersByID[orderID] = order
	return &order, nil
}

func (s *Store) CreateDebtor(_ context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	if debtor.ID == "" || debtor.StoreID == "" || debtor.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.debtorsByID[debtor.ID]; exists {
		return nil, store.ErrConflict
	}
	s.debtorsByID[debtor.ID] = debtor
	return &debtor, nil
}

func (s *Store) GetDebtorByID(_ context.Context, storeID string, debtorID string) (*domain.Debtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debtor, ok := s.debtorsByID[debtorID]
	if !ok || debtor.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &debtor, nil
}

func (s *Store) ListDebtors(_ context.Context, storeID string, limit int) ([]domain.Debtor, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	debtors := make([]domain.Debtor, 0, len(s.debtorsByID))
	for _, debtor := range s.debtorsByID {
		if debtor.StoreID == storeID {
			debtors = append(debtors, debtor)
		}
	}
	sort.Slice(debtors, func(i, j int) bool { return debtors[i].Name < debtors[j].Name })
	if len(debtors) > limit {
		debtors = debtors[:limit]
	}
	return debtors, nil
}

func (s *Store) AdjustDebtorBalance(_ context.Context, storeID string, debtorID string, deltaCents int64) (*domain.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtor, ok := s.debtorsByID[debtorID]
	if !ok || debtor.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	debtor.BalanceCents += deltaCents
	s.debtorsByID[debtorID] = debtor
	return &debtor, nil
}

func (s *Store) CreateDebtDocument(_ context.Context, doc domain.DebtDocument) (*domain.DebtDocument, error) {
	if doc.ID == "" || doc.StoreID == "" || doc.DebtorID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.debtDocsByID[doc.ID]; exists {
		return nil, store.ErrConflict
	}
	doc.Lines = append([]domain.CartLine(nil), doc.Lines...)
	s.debtDocsByID[doc.ID] = doc
	return &doc, nil
}

func (s *Store) ListDebtDocuments(_ context.Context, storeID string, debtorID string, limit int) ([]domain.DebtDocument, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.DebtDocument, 0, 16)
	for _, doc := range s.debtDocsByID {
		if doc.StoreID == storeID && doc.DebtorID == debtorID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *Store) GetExchangeRate(_ context.Context, storeID string) (*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.ratesByStore[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rate, nil
}

func (s *Store) SetExchangeRate(_ context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	if rate.StoreID == "" || rate.Rate <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ratesByStore[rate.StoreID] = rate
	return &rate, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 32)
	for _, entry := range s.auditLogs {
		if entry.StoreID != storeID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) GetSalesSummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{StoreID: storeID}
	for _, order := range s.ordersByID {
		if order.StoreID != storeID || order.Status != domain.OrderStatusCompleted {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		summary.Orders++
		switch order.Currency {
		case domain.CurrencyUSD:
			summary.RevenueUSDCents += order.TotalCents
		default:
			summary.RevenueUZSCents += order.TotalCents
		}
	}
	for _, doc := range s.debtDocsByID {
		if doc.StoreID != storeID {
			continue
		}
		if doc.CreatedAt.Before(from) || !doc.CreatedAt.Before(to) {
			continue
		}
		switch doc.Kind {
		case domain.DebtDocIn:
			summary.DebtInCents += doc.TotalCents
		case domain.DebtDocOut:
			summary.DebtOutCents += doc.TotalCents
		}
	}
	return summary, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
