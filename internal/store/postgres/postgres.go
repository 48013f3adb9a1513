package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"svetafor/backend/internal/domain"
	"svetafor/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) ListProducts(ctx context.Context, storeID string, query string, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, articul, brand, category,
		       in_price_cents, out_price_cents, currency, count, warehouse_count, active, created_at
		FROM products
		WHERE store_id = $1
		  AND active = true
		  AND ($2 = '' OR name ILIKE '%'||$2||'%' OR articul ILIKE '%'||$2||'%' OR brand ILIKE '%'||$2||'%')
		ORDER BY category, name
		LIMIT $3
	`, storeID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Articul, &p.Brand, &p.Category,
			&p.InPriceCents, &p.OutPriceCents, &p.Currency, &p.Count, &p.WarehouseCount, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(ctx context.Context, storeID string, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, articul, brand, category,
		       in_price_cents, out_price_cents, currency, count, warehouse_count, active, created_at
		FROM products
		WHERE store_id = $1 AND id = $2
	`, storeID, productID).Scan(&p.ID, &p.StoreID, &p.Name, &p.Articul, &p.Brand, &p.Category,
		&p.InPriceCents, &p.OutPriceCents, &p.Currency, &p.Count, &p.WarehouseCount, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.StoreID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, name, articul, brand, category,
		                      in_price_cents, out_price_cents, currency, count, warehouse_count, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, product.ID, product.StoreID, product.Name, product.Articul, product.Brand, product.Category,
		product.InPriceCents, product.OutPriceCents, product.Currency, product.Count, product.WarehouseCount,
		product.Active, product.CreatedAt)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name=$3, articul=$4, brand=$5, category=$6,
		    in_price_cents=$7, out_price_cents=$8, currency=$9,
		    count=$10, warehouse_count=$11, active=$12
		WHERE store_id = $1 AND id = $2
	`, product.StoreID, product.ID, product.Name, product.Articul, product.Brand, product.Category,
		product.InPriceCents, product.OutPriceCents, product.Currency,
		product.Count, product.WarehouseCount, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) AdjustStock(ctx context.Context, storeID string, productID string, countDelta int, warehouseDelta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET count = count + $3, warehouse_count = warehouse_count + $4
		WHERE store_id = $1 AND id = $2
		  AND count + $3 >= 0 AND warehouse_count + $4 >= 0
	`, storeID, productID, countDelta, warehouseDelta)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the product is missing or the delta would go negative.
		if _, err := s.GetProductByID(ctx, storeID, productID); err != nil {
			return err
		}
		return store.ErrInsufficientStock
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || order.StoreID == "" || len(order.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, number, store_id, terminal_id, seller_username,
		                    customer_phone, customer_name, payment_method, currency, rate,
		                    total_cents, paid_cents, change_given, change_cents, change_currency,
		                    status, created_at, lines)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, order.ID, order.Number, order.StoreID, order.TerminalID, order.SellerUsername,
		order.CustomerPhone, order.CustomerName, order.PaymentMethod, order.Currency, order.Rate,
		order.TotalCents, order.PaidCents, order.ChangeGiven, order.ChangeCents, order.ChangeCurrency,
		order.Status, order.CreatedAt, lines)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var order domain.Order
	var lines []byte
	err := scanner.Scan(&order.ID, &order.Number, &order.StoreID, &order.TerminalID, &order.SellerUsername,
		&order.CustomerPhone, &order.CustomerName, &order.PaymentMethod, &order.Currency, &order.Rate,
		&order.TotalCents, &order.PaidCents, &order.ChangeGiven, &order.ChangeCents, &order.ChangeCurrency,
		&order.Status, &order.CreatedAt, &order.CancelledAt, &lines)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, err
	}
	return &order, nil
}

const orderColumns = `id, number, store_id, terminal_id, seller_username,
	customer_phone, customer_name, payment_method, currency, rate,
	total_cents, paid_cents, change_given, change_cents, change_currency,
	status, created_at, cancelled_at, lines`

func (s *Store) GetOrderByID(ctx context.Context, storeID string, orderID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE store_id = $1 AND id = $2
	`, storeID, orderID)
	return scanOrder(row)
}

func (s *Store) ListOrders(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *Store) CancelOrder(ctx context.Context, storeID string, orderID string, at time.Time) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $4, cancelled_at = $3
		WHERE store_id = $1 AND id = $2 AND status <> $4
	`, storeID, orderID, at, domain.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetOrderByID(ctx, storeID, orderID); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidInput
	}
	return s.GetOrderByID(ctx, storeID, orderID)
}

func (s *Store) CreateDebtor(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	if debtor.ID == "" || debtor.StoreID == "" || debtor.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debtors (id, store_id, name, phone, balance_cents, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, debtor.ID, debtor.StoreID, debtor.Name, debtor.Phone, debtor.BalanceCents, debtor.Currency, debtor.CreatedAt)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &debtor, nil
}

func (s *Store) GetDebtorByID(ctx context.Context, storeID string, debtorID string) (*domain.Debtor, error) {
	var d domain.Debtor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, phone, balance_cents, currency, created_at
		FROM debtors
		WHERE store_id = $1 AND id = $2
	`, storeID, debtorID).Scan(&d.ID, &d.StoreID, &d.Name, &d.Phone, &d.BalanceCents, &d.Currency, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListDebtors(ctx context.Context, storeID string, limit int) ([]domain.Debtor, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, phone, balance_cents, currency, created_at
		FROM debtors
		WHERE store_id = $1
		ORDER BY name
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debtors := make([]domain.Debtor, 0, 64)
	for rows.Next() {
		var d domain.Debtor
		if err := rows.Scan(&d.ID, &d.StoreID, &d.Name, &d.Phone, &d.BalanceCents, &d.Currency, &d.CreatedAt); err != nil {
			return nil, err
		}
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

func (s *Store) AdjustDebtorBalance(ctx context.Context, storeID string, debtorID string, deltaCents int64) (*domain.Debtor, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE debtors
		SET balance_cents = balance_cents + $3
		WHERE store_id = $1 AND id = $2
	`, storeID, debtorID, deltaCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetDebtorByID(ctx, storeID, debtorID)
}

func (s *Store) CreateDebtDocument(ctx context.Context, doc domain.DebtDocument) (*domain.DebtDocument, error) {
	if doc.ID == "" || doc.StoreID == "" || doc.DebtorID == "" {
		return nil, store.ErrInvalidInput
	}
	lines, err := json.Marshal(doc.Lines)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO debt_documents (id, number, store_id, debtor_id, kind, seller_username,
		                            payment_method, currency, rate, total_cents, comment, created_at, lines)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, doc.ID, doc.Number, doc.StoreID, doc.DebtorID, doc.Kind, doc.SellerUsername,
		doc.PaymentMethod, doc.Currency, doc.Rate, doc.TotalCents, doc.Comment, doc.CreatedAt, lines)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDebtDocuments(ctx context.Context, storeID string, debtorID string, limit int) ([]domain.DebtDocument, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, store_id, debtor_id, kind, seller_username,
		       payment_method, currency, rate, total_cents, comment, created_at, lines
		FROM debt_documents
		WHERE store_id = $1 AND debtor_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, debtorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.DebtDocument, 0, 16)
	for rows.Next() {
		var doc domain.DebtDocument
		var lines []byte
		if err := rows.Scan(&doc.ID, &doc.Number, &doc.StoreID, &doc.DebtorID, &doc.Kind, &doc.SellerUsername,
			&doc.PaymentMethod, &doc.Currency, &doc.Rate, &doc.TotalCents, &doc.Comment, &doc.CreatedAt, &lines); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(lines, &doc.Lines); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) GetExchangeRate(ctx context.Context, storeID string) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, rate, updated_by, updated_at
		FROM exchange_rates
		WHERE store_id = $1
	`, storeID).Scan(&rate.StoreID, &rate.Rate, &rate.UpdatedBy, &rate.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (s *Store) SetExchangeRate(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	if rate.StoreID == "" || rate.Rate <= 0 {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (store_id, rate, updated_by, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (store_id)
		DO UPDATE SET rate = EXCLUDED.rate, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, rate.StoreID, rate.Rate, rate.UpdatedBy, rate.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 32)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{StoreID: storeID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_cents) FILTER (WHERE currency = 'UZS'), 0),
		       COALESCE(SUM(total_cents) FILTER (WHERE currency = 'USD'), 0)
		FROM orders
		WHERE store_id = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
	`, storeID, domain.OrderStatusCompleted, from, to).Scan(&summary.Orders, &summary.RevenueUZSCents, &summary.RevenueUSDCents)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents) FILTER (WHERE kind = 'in'), 0),
		       COALESCE(SUM(total_cents) FILTER (WHERE kind = 'out'), 0)
		FROM debt_documents
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, storeID, from, to).Scan(&summary.DebtInCents, &summary.DebtOutCents)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	return summary, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	stores, err := json.Marshal(user.Stores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, stores, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.Username, user.Password, user.Role, stores, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, stores, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		var stores []byte
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &stores, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		if len(stores) > 0 {
			if err := json.Unmarshal(stores, &user.Stores); err != nil {
				return nil, err
			}
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
