package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ahadumarket/models"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
)

func testConfig() Config {
	return Config{AdminID: 1, SalesGroupChat: "@sales", CommissionRate: 0.05}
}

func TestLogSaleDecrementsInventoryAndComputesCommission(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `products` .*FOR UPDATE").WillReturnRows(productRow(7, "Widget", 100, 1))
	mock.ExpectExec("UPDATE `products` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	pid := uint(7)
	order, err := eng.LogSale(context.Background(), 42, SaleInput{
		ProductID:     &pid,
		CustomerName:  "Marta",
		CustomerPhone: "+251911000000",
	})
	if err != nil {
		t.Fatalf("LogSale: %v", err)
	}
	if order.ProductName != "Widget" || order.ProductPrice != 100 {
		t.Fatalf("expected catalog snapshot, got %q/%v", order.ProductName, order.ProductPrice)
	}
	if order.CommissionEarned != 5 {
		t.Fatalf("expected commission 5.00, got %v", order.CommissionEarned)
	}
	if order.ProductID == nil || *order.ProductID != 7 {
		t.Fatalf("expected product reference 7, got %v", order.ProductID)
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	msgs := bot.messages()
	if len(msgs) != 1 || msgs[0].Chat != "1" {
		t.Fatalf("expected one admin alert to chat 1, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Text, "Widget") {
		t.Fatalf("alert should name the product: %q", msgs[0].Text)
	}
}

func TestLogSaleFailsWhenOutOfStock(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `products` .*FOR UPDATE").WillReturnRows(productRow(7, "Widget", 100, 0))
	mock.ExpectRollback()

	pid := uint(7)
	_, err := eng.LogSale(context.Background(), 42, SaleInput{
		ProductID:     &pid,
		CustomerName:  "Marta",
		CustomerPhone: "+251911000000",
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	if len(bot.messages()) != 0 {
		t.Fatal("failed sale must not notify the admin")
	}
}

func TestLogSaleMissingProductIsOutOfStock(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `products` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "quantity", "specs"}))
	mock.ExpectRollback()

	pid := uint(404)
	_, err := eng.LogSale(context.Background(), 42, SaleInput{
		ProductID:     &pid,
		CustomerName:  "Marta",
		CustomerPhone: "+251911000000",
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func TestLogSaleRejectsUnapprovedSalesperson(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusPending, 0))

	pid := uint(7)
	_, err := eng.LogSale(context.Background(), 42, SaleInput{
		ProductID:     &pid,
		CustomerName:  "Marta",
		CustomerPhone: "+251911000000",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestLogSaleAdHocSkipsInventory(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orders`").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	order, err := eng.LogSale(context.Background(), 42, SaleInput{
		ProductName:   "Custom Cabinet",
		ProductPrice:  80,
		CustomerName:  "Marta",
		CustomerPhone: "+251911000000",
	})
	if err != nil {
		t.Fatalf("LogSale: %v", err)
	}
	if order.ProductID != nil {
		t.Fatalf("ad-hoc sale must not reference the catalog, got %v", *order.ProductID)
	}
	if order.CommissionEarned != 4 {
		t.Fatalf("expected commission 4.00, got %v", order.CommissionEarned)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLogSaleValidatesInput(t *testing.T) {
	db, _ := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	cases := []SaleInput{
		{ProductName: "X", ProductPrice: 10, CustomerPhone: "+251911000000"}, // no customer name
		{ProductName: "X", ProductPrice: 10, CustomerName: "Marta"},          // no phone
		{CustomerName: "Marta", CustomerPhone: "+251911000000"},              // ad-hoc without name/price
		{ProductName: "X", ProductPrice: -5, CustomerName: "Marta", CustomerPhone: "+251911000000"},
	}
	for i, in := range cases {
		if _, err := eng.LogSale(context.Background(), 42, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestApproveUserAssignsPromoAndNotifies(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusPending, 0))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := eng.ApproveUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("ApproveUser: %v", err)
	}
	if user.Status != models.UserStatusApproved {
		t.Fatalf("expected APPROVED, got %s", user.Status)
	}
	if user.PromoCode == nil || len(*user.PromoCode) != 8 {
		t.Fatalf("expected 8-char promo code, got %v", user.PromoCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	msgs := bot.messages()
	if len(msgs) != 1 || msgs[0].Chat != "42" {
		t.Fatalf("expected welcome message to chat 42, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Text, *user.PromoCode) {
		t.Fatalf("welcome message should carry the promo code: %q", msgs[0].Text)
	}
}

func TestApproveUserSurvivesNotificationFailure(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{fail: true}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusPending, 0))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := eng.ApproveUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("delivery failure must not fail the approval: %v", err)
	}
	if user.Status != models.UserStatusApproved {
		t.Fatalf("expected APPROVED, got %s", user.Status)
	}
}

func TestApproveUserRetriesOnPromoCollision(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	dup := &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusPending, 0))
	mock.ExpectExec("UPDATE `users` SET").WillReturnError(dup)
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := eng.ApproveUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("ApproveUser after collision: %v", err)
	}
	if user.PromoCode == nil {
		t.Fatal("expected a promo code after retry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveUserRejectsNonPending(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectRollback()

	if _, err := eng.ApproveUser(context.Background(), 42); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(bot.messages()) != 0 {
		t.Fatal("no notification expected for a failed approval")
	}
}

func TestApproveUserNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "status", "unpaid_commission", "created_at"}))
	mock.ExpectRollback()

	if _, err := eng.ApproveUser(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveOrderApproveCreditsCommissionAndCelebrates(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `orders` .*FOR UPDATE").
		WillReturnRows(orderRow(11, 42, 7, "Widget", 100, models.OrderStatusPending, 5))
	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := eng.ResolveOrder(context.Background(), 11, ActionApprove)
	if err != nil {
		t.Fatalf("ResolveOrder approve: %v", err)
	}
	if order.Status != models.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", order.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	msgs := bot.messages()
	if len(msgs) != 1 || msgs[0].Chat != "@sales" {
		t.Fatalf("expected celebration in @sales, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Text, "Abel") {
		t.Fatalf("celebration should name the seller: %q", msgs[0].Text)
	}
}

func TestResolveOrderApproveWithoutGroupChatSkipsCelebration(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	cfg := testConfig()
	cfg.SalesGroupChat = ""
	eng := NewEngine(db, bot, cfg)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `orders` .*FOR UPDATE").
		WillReturnRows(orderRow(11, 42, nil, "Widget", 100, models.OrderStatusPending, 5))
	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := eng.ResolveOrder(context.Background(), 11, ActionApprove); err != nil {
		t.Fatalf("ResolveOrder approve: %v", err)
	}
	if len(bot.messages()) != 0 {
		t.Fatal("no group chat configured, no celebration expected")
	}
}

func TestResolveOrderRejectRestocksReferencedProduct(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `orders` .*FOR UPDATE").
		WillReturnRows(orderRow(11, 42, 7, "Widget", 100, models.OrderStatusPending, 5))
	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `products` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := eng.ResolveOrder(context.Background(), 11, ActionReject)
	if err != nil {
		t.Fatalf("ResolveOrder reject: %v", err)
	}
	if order.Status != models.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", order.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveOrderRejectAdHocTouchesNoInventory(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `orders` .*FOR UPDATE").
		WillReturnRows(orderRow(11, 42, nil, "Custom Cabinet", 80, models.OrderStatusPending, 4))
	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := eng.ResolveOrder(context.Background(), 11, ActionReject); err != nil {
		t.Fatalf("ResolveOrder reject ad-hoc: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveOrderDoubleResolutionFailsCleanly(t *testing.T) {
	db, mock := newTestDB(t)
	bot := &stubNotifier{}
	eng := NewEngine(db, bot, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `orders` .*FOR UPDATE").
		WillReturnRows(orderRow(11, 42, 7, "Widget", 100, models.OrderStatusCompleted, 5))
	mock.ExpectRollback()

	if _, err := eng.ResolveOrder(context.Background(), 11, ActionApprove); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	if len(bot.messages()) != 0 {
		t.Fatal("a failed resolution must not celebrate")
	}
}

func TestResolveOrderRejectsUnknownAction(t *testing.T) {
	db, _ := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	if _, err := eng.ResolveOrder(context.Background(), 11, "archive"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMarkPaidWritesLedgerAndResetsCounter(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 12.5))
	mock.ExpectExec("INSERT INTO `payouts`").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := eng.MarkPaid(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if user.UnpaidCommission != 0 {
		t.Fatalf("expected zeroed commission, got %v", user.UnpaidCommission)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkPaidZeroBalanceSkipsLedger(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").WillReturnRows(userRow(42, "Abel", models.UserStatusApproved, 0))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := eng.MarkPaid(context.Background(), 1, 42); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateProductValidates(t *testing.T) {
	db, _ := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	cases := []ProductInput{
		{Name: "", Price: 10, Quantity: 1},
		{Name: "Widget", Price: 0, Quantity: 1},
		{Name: "Widget", Price: 10, Quantity: -1},
	}
	for i, in := range cases {
		if _, err := eng.CreateProduct(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestDeleteProductNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectExec("DELETE FROM `products`").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := eng.DeleteProduct(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(userRow(1, "Admin", models.UserStatusAdmin, 0))

	if err := eng.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("EnsureAdmin with existing row: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterRejectsSecondRegistration(t *testing.T) {
	db, mock := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	phone := "+251911000000"
	rows := sqlmock.NewRows([]string{"id", "first_name", "phone_number", "status"}).
		AddRow(42, "Abel", phone, models.UserStatusPending)
	mock.ExpectQuery("SELECT .* FROM `users`").WillReturnRows(rows)

	if _, err := eng.Register(context.Background(), 42, "Abel", "+251922000000"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRegisterRequiresPhone(t *testing.T) {
	db, _ := newTestDB(t)
	eng := NewEngine(db, &stubNotifier{}, testConfig())

	if _, err := eng.Register(context.Background(), 42, "Abel", "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
