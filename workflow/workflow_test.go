package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens GORM over a sqlmock connection. Default per-statement
// transactions are disabled so single writes map to single Execs; the
// engine's explicit transactions still produce Begin/Commit.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

type sentMessage struct {
	Chat string
	Text string
}

// stubNotifier records sends; fail makes every send error.
type stubNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (s *stubNotifier) Notify(chat string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errTestSendFailed
	}
	s.sent = append(s.sent, sentMessage{Chat: chat, Text: text})
	return nil
}

func (s *stubNotifier) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

var errTestSendFailed = &notifyError{}

type notifyError struct{}

func (*notifyError) Error() string { return "send failed" }

func userRow(id int64, name, status string, unpaid float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "status", "unpaid_commission", "created_at"}).
		AddRow(id, name, status, unpaid, time.Now())
}

func productRow(id uint, name string, price float64, quantity int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "price", "quantity", "specs"}).
		AddRow(id, name, price, quantity, "")
}

func orderRow(id uint, salespersonID int64, productID interface{}, name string, price float64, status string, commission float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "salesperson_id", "product_id", "product_name", "product_price", "customer_name", "customer_phone", "status", "commission_earned", "created_at"}).
		AddRow(id, salespersonID, productID, name, price, "Customer", "+251900000000", status, commission, time.Now())
}
