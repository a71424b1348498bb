package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/cart"
	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/invoice"
	"github.com/Prjsupa/vivero-api/internal/promo"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// stubDB backs both the cart service and invoice persistence in tests.
type stubDB struct {
	carts     map[uuid.UUID]store.Cart
	cartLines map[uuid.UUID]store.CartLine
	products  map[uuid.UUID]store.Product
	customers map[uuid.UUID]store.Customer

	counters  map[string]int64
	invoices  map[uuid.UUID]store.Invoice
	invLines  []store.InvoiceLine
	discounts []store.InvoiceDiscount

	commits int
}

func newStubDB() *stubDB {
	return &stubDB{
		carts:     map[uuid.UUID]store.Cart{},
		cartLines: map[uuid.UUID]store.CartLine{},
		products:  map[uuid.UUID]store.Product{},
		customers: map[uuid.UUID]store.Customer{},
		counters:  map[string]int64{},
		invoices:  map[uuid.UUID]store.Invoice{},
	}
}

func pgID(id uuid.UUID) pgtype.UUID { return pgtype.UUID{Bytes: id, Valid: true} }

// cart side

func (s *stubDB) CreateCart(_ context.Context, customerID pgtype.UUID, expiresAt pgtype.Timestamptz) (store.Cart, error) {
	id := uuid.New()
	c := store.Cart{ID: pgID(id), CustomerID: customerID, GeneralDiscount: decimal.Zero, GeneralDiscountType: "amount", ExpiresAt: expiresAt}
	s.carts[id] = c
	return c, nil
}

func (s *stubDB) GetCart(_ context.Context, id pgtype.UUID) (store.Cart, error) {
	c, ok := s.carts[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubDB) TouchCart(_ context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error {
	c, ok := s.carts[uuid.UUID(id.Bytes)]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = expiresAt
	s.carts[uuid.UUID(id.Bytes)] = c
	return nil
}

func (s *stubDB) UpdateCartCustomer(_ context.Context, id pgtype.UUID, customerID pgtype.UUID) error {
	c := s.carts[uuid.UUID(id.Bytes)]
	c.CustomerID = customerID
	s.carts[uuid.UUID(id.Bytes)] = c
	return nil
}

func (s *stubDB) UpdateCartGeneralDiscount(_ context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) error {
	c := s.carts[uuid.UUID(id.Bytes)]
	c.GeneralDiscount = value
	c.GeneralDiscountType = discountType
	s.carts[uuid.UUID(id.Bytes)] = c
	return nil
}

func (s *stubDB) DeleteCart(_ context.Context, id pgtype.UUID) error {
	delete(s.carts, uuid.UUID(id.Bytes))
	return nil
}

func (s *stubDB) CreateCartLine(_ context.Context, arg store.CreateCartLineParams) (store.CartLine, error) {
	id := uuid.New()
	l := store.CartLine{
		ID: pgID(id), CartID: arg.CartID, ItemID: arg.ItemID, ItemKind: arg.ItemKind,
		Name: arg.Name, CategoryID: arg.CategoryID, SubcategoryID: arg.SubcategoryID,
		Qty: arg.Qty, UnitPrice: arg.UnitPrice,
		ManualDiscount: arg.ManualDiscount, ManualDiscountType: arg.ManualDiscountType,
	}
	s.cartLines[id] = l
	return l, nil
}

func (s *stubDB) FindCartLineByItem(_ context.Context, cartID, itemID pgtype.UUID, itemKind string) (store.CartLine, error) {
	for _, l := range s.cartLines {
		if l.CartID == cartID && l.ItemID == itemID && l.ItemKind == itemKind {
			return l, nil
		}
	}
	return store.CartLine{}, pgx.ErrNoRows
}

func (s *stubDB) GetCartLine(_ context.Context, id pgtype.UUID) (store.CartLine, error) {
	l, ok := s.cartLines[uuid.UUID(id.Bytes)]
	if !ok {
		return store.CartLine{}, pgx.ErrNoRows
	}
	return l, nil
}

func (s *stubDB) UpdateCartLineQty(_ context.Context, id pgtype.UUID, qty int32) (store.CartLine, error) {
	l, ok := s.cartLines[uuid.UUID(id.Bytes)]
	if !ok {
		return store.CartLine{}, pgx.ErrNoRows
	}
	l.Qty = qty
	s.cartLines[uuid.UUID(id.Bytes)] = l
	return l, nil
}

func (s *stubDB) UpdateCartLineDiscount(_ context.Context, id pgtype.UUID, value decimal.Decimal, discountType string) (store.CartLine, error) {
	l, ok := s.cartLines[uuid.UUID(id.Bytes)]
	if !ok {
		return store.CartLine{}, pgx.ErrNoRows
	}
	l.ManualDiscount = value
	l.ManualDiscountType = discountType
	s.cartLines[uuid.UUID(id.Bytes)] = l
	return l, nil
}

func (s *stubDB) DeleteCartLine(_ context.Context, id, _ pgtype.UUID) error {
	delete(s.cartLines, uuid.UUID(id.Bytes))
	return nil
}

func (s *stubDB) ListCartLines(_ context.Context, cartID pgtype.UUID) ([]store.CartLine, error) {
	var out []store.CartLine
	for _, l := range s.cartLines {
		if l.CartID == cartID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubDB) GetProduct(_ context.Context, id pgtype.UUID) (store.Product, error) {
	p, ok := s.products[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubDB) GetService(_ context.Context, id pgtype.UUID) (store.Service, error) {
	return store.Service{}, pgx.ErrNoRows
}

func (s *stubDB) GetCustomer(_ context.Context, id pgtype.UUID) (store.Customer, error) {
	c, ok := s.customers[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

// invoice side

func (s *stubDB) NextInvoiceNumber(_ context.Context, pointOfSale int32, invoiceType string) (int64, error) {
	key := invoiceType
	s.counters[key]++
	return s.counters[key], nil
}

func (s *stubDB) CreateInvoice(_ context.Context, arg store.CreateInvoiceParams) (store.Invoice, error) {
	id := uuid.New()
	inv := store.Invoice{
		ID: pgID(id), PointOfSale: arg.PointOfSale, Number: arg.Number, InvoiceType: arg.InvoiceType,
		CustomerID: arg.CustomerID, CustomerName: arg.CustomerName, FiscalCondition: arg.FiscalCondition,
		Currency: arg.Currency, Subtotal: arg.Subtotal, ItemDiscounts: arg.ItemDiscounts,
		GeneralDiscount: arg.GeneralDiscount, DiscountsTotal: arg.DiscountsTotal,
		VatRate: arg.VatRate, VatAmount: arg.VatAmount, GrandTotal: arg.GrandTotal,
		CreatedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	s.invoices[id] = inv
	return inv, nil
}

func (s *stubDB) CreateInvoiceLine(_ context.Context, arg store.CreateInvoiceLineParams) (pgtype.UUID, error) {
	id := pgID(uuid.New())
	s.invLines = append(s.invLines, store.InvoiceLine{
		ID: id, InvoiceID: arg.InvoiceID, ItemID: arg.ItemID, ItemKind: arg.ItemKind,
		Name: arg.Name, Qty: arg.Qty, UnitPrice: arg.UnitPrice,
		AutoDiscount: arg.AutoDiscount, ManualDiscount: arg.ManualDiscount, LineTotal: arg.LineTotal,
	})
	return id, nil
}

func (s *stubDB) CreateInvoiceDiscount(_ context.Context, arg store.CreateInvoiceDiscountParams) error {
	s.discounts = append(s.discounts, store.InvoiceDiscount{
		ID: pgID(uuid.New()), InvoiceID: arg.InvoiceID, LineID: arg.LineID,
		PromotionID: arg.PromotionID, Name: arg.Name, Amount: arg.Amount,
	})
	return nil
}

func (s *stubDB) GetInvoice(_ context.Context, id pgtype.UUID) (store.Invoice, error) {
	inv, ok := s.invoices[uuid.UUID(id.Bytes)]
	if !ok {
		return store.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (s *stubDB) ListInvoices(_ context.Context, limit, offset int32) ([]store.Invoice, error) {
	var out []store.Invoice
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (s *stubDB) CountInvoices(_ context.Context) (int64, error) {
	return int64(len(s.invoices)), nil
}

func (s *stubDB) ListInvoiceLines(_ context.Context, invoiceID pgtype.UUID) ([]store.InvoiceLine, error) {
	var out []store.InvoiceLine
	for _, l := range s.invLines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubDB) ListInvoiceDiscounts(_ context.Context, invoiceID pgtype.UUID) ([]store.InvoiceDiscount, error) {
	var out []store.InvoiceDiscount
	for _, d := range s.discounts {
		if d.InvoiceID == invoiceID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDB) GetProductStockForUpdate(_ context.Context, id pgtype.UUID) (int32, error) {
	p, ok := s.products[uuid.UUID(id.Bytes)]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return p.Stock, nil
}

func (s *stubDB) DecrementProductStock(_ context.Context, id pgtype.UUID, qty int32) error {
	p := s.products[uuid.UUID(id.Bytes)]
	p.Stock -= qty
	s.products[uuid.UUID(id.Bytes)] = p
	return nil
}

// stubTx satisfies pgx.Tx; only Commit and Rollback are exercised.
type stubTx struct {
	db *stubDB
}

func (t stubTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t stubTx) Commit(context.Context) error {
	t.db.commits++
	return nil
}
func (t stubTx) Rollback(context.Context) error { return nil }
func (t stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t stubTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t stubTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t stubTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t stubTx) Conn() *pgx.Conn                                         { return nil }

type stubPool struct {
	db *stubDB
}

func (p stubPool) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return stubTx{db: p.db}, nil
}

type stubRules struct {
	rules []promo.Rule
}

func (s stubRules) ActiveRules(context.Context) ([]promo.Rule, error) { return s.rules, nil }

func (s *stubDB) addProduct(name string, price int64, stock int32) uuid.UUID {
	id := uuid.New()
	s.products[id] = store.Product{
		ID: pgID(id), SKU: "SKU-" + id.String()[:8], Name: name,
		Price: decimal.NewFromInt(price), Stock: stock, Active: true,
	}
	return id
}

func newServices(db *stubDB, rules []promo.Rule) (*cart.Service, *invoice.Service) {
	cartSvc := &cart.Service{
		Q:       db,
		Rules:   stubRules{rules: rules},
		TTL:     time.Hour,
		VATRate: decimal.NewFromInt(21),
		Log:     zerolog.Nop(),
	}
	invSvc := &invoice.Service{
		Q:           db,
		Pool:        stubPool{db: db},
		Cart:        cartSvc,
		PointOfSale: 1,
		Currency:    "ARS",
		Log:         zerolog.Nop(),
	}
	return cartSvc, invSvc
}

func TestCreateIssuesNumberedInvoice(t *testing.T) {
	db := newStubDB()
	productID := db.addProduct("Lavanda", 150, 10)
	cartSvc, invSvc := newServices(db, nil)
	ctx := context.Background()

	created, err := cartSvc.Create(ctx, nil)
	require.NoError(t, err)
	_, err = cartSvc.AddLine(ctx, created.ID, cart.AddLineInput{ItemID: productID.String(), ItemKind: "product", Qty: 2})
	require.NoError(t, err)

	dto, err := invSvc.Create(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "0001-00000001", dto.Number)
	require.Equal(t, "B", dto.InvoiceType)
	require.True(t, dto.GrandTotal.Equal(decimal.NewFromInt(300)))
	require.Len(t, dto.Lines, 1)

	require.Equal(t, 1, db.commits)
	require.EqualValues(t, 8, db.products[productID].Stock)
	require.Empty(t, db.carts)

	// the second invoice of the same type advances the counter
	created, err = cartSvc.Create(ctx, nil)
	require.NoError(t, err)
	_, err = cartSvc.AddLine(ctx, created.ID, cart.AddLineInput{ItemID: productID.String(), ItemKind: "product", Qty: 1})
	require.NoError(t, err)
	dto, err = invSvc.Create(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "0001-00000002", dto.Number)
}

func TestCreateRejectsInsufficientStock(t *testing.T) {
	db := newStubDB()
	productID := db.addProduct("Helecho", 200, 5)
	cartSvc, invSvc := newServices(db, nil)
	ctx := context.Background()

	created, err := cartSvc.Create(ctx, nil)
	require.NoError(t, err)
	_, err = cartSvc.AddLine(ctx, created.ID, cart.AddLineInput{ItemID: productID.String(), ItemKind: "product", Qty: 5})
	require.NoError(t, err)

	// stock drops between quoting and invoicing
	p := db.products[productID]
	p.Stock = 2
	db.products[productID] = p

	_, err = invSvc.Create(ctx, created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeStockConflict, appErr.Code)
	require.Empty(t, db.invoices)
	require.Zero(t, db.commits)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	db := newStubDB()
	cartSvc, invSvc := newServices(db, nil)
	ctx := context.Background()

	created, err := cartSvc.Create(ctx, nil)
	require.NoError(t, err)

	_, err = invSvc.Create(ctx, created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestCreatePersistsDiscountBreakdown(t *testing.T) {
	db := newStubDB()
	productID := db.addProduct("Rosal", 100, 20)
	rules := []promo.Rule{{
		ID:        uuid.New(),
		Name:      "3x2 rosales",
		Active:    true,
		Mechanism: promo.MechanismXForY,
		Take:      3,
		Pay:       2,
		Scope:     promo.ScopeAllStore,
	}}
	cartSvc, invSvc := newServices(db, rules)
	ctx := context.Background()

	created, err := cartSvc.Create(ctx, nil)
	require.NoError(t, err)
	_, err = cartSvc.AddLine(ctx, created.ID, cart.AddLineInput{ItemID: productID.String(), ItemKind: "product", Qty: 3})
	require.NoError(t, err)

	dto, err := invSvc.Create(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, dto.ItemDiscounts.Equal(decimal.NewFromInt(100)))

	require.Len(t, db.discounts, 1)
	require.Equal(t, "3x2 rosales", db.discounts[0].Name)
	require.True(t, db.discounts[0].Amount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, rules[0].ID, uuid.UUID(db.discounts[0].PromotionID.Bytes))

	full, err := invSvc.Get(ctx, dto.ID)
	require.NoError(t, err)
	require.Len(t, full.Lines, 1)
	require.Len(t, full.Discounts, 1)
}

func TestCreateSnapshotsCustomerFiscalData(t *testing.T) {
	db := newStubDB()
	productID := db.addProduct("Tierra abonada", 1000, 10)
	customerID := uuid.New()
	db.customers[customerID] = store.Customer{
		ID: pgID(customerID), Name: "Vivero del Sur SRL", FiscalCondition: "responsable_inscripto",
	}
	cartSvc, invSvc := newServices(db, nil)
	ctx := context.Background()

	id := customerID.String()
	created, err := cartSvc.Create(ctx, &id)
	require.NoError(t, err)
	_, err = cartSvc.AddLine(ctx, created.ID, cart.AddLineInput{ItemID: productID.String(), ItemKind: "product", Qty: 1})
	require.NoError(t, err)

	dto, err := invSvc.Create(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "A", dto.InvoiceType)
	require.NotNil(t, dto.CustomerName)
	require.Equal(t, "Vivero del Sur SRL", *dto.CustomerName)
	require.NotNil(t, dto.FiscalCondition)
	require.Equal(t, "responsable_inscripto", *dto.FiscalCondition)
	require.True(t, dto.VATAmount.Equal(decimal.NewFromInt(210)))
}

func TestGetNotFound(t *testing.T) {
	db := newStubDB()
	_, invSvc := newServices(db, nil)

	_, err := invSvc.Get(context.Background(), uuid.NewString())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)
}
