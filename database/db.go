package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the MySQL connection with pooling, optional TLS and
// retry with exponential backoff.
func Connect() (*gorm.DB, error) {
	host := getenv("DB_HOST", "127.0.0.1")
	port := getenv("DB_PORT", "3306")
	user := getenv("DB_USER", "root")
	pass := getenv("DB_PASS", "")
	name := getenv("DB_NAME", "ahadumarket")
	params := getenv("DB_PARAMS", "charset=utf8mb4&parseTime=True&loc=UTC")

	// Explicit DSN override wins over the assembled one.
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if !strings.Contains(params, "tls=") {
			tlsMode := getenv("DB_TLS", "false")
			if tlsMode == "true" || tlsMode == "preferred" {
				if getenv("DB_TLS_VERIFY", "false") == "true" {
					params += "&tls=custom"
				} else {
					params += "&tls=true"
				}
			}
		}
		if !strings.Contains(params, "timeout=") {
			params += "&timeout=10s"
		}
		if !strings.Contains(params, "readTimeout=") {
			params += "&readTimeout=10s"
		}
		if !strings.Contains(params, "writeTimeout=") {
			params += "&writeTimeout=10s"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, name, params)
	}

	safeDSN := dsn
	if pass != "" {
		safeDSN = strings.Replace(safeDSN, pass, "******", 1)
	}
	log.Printf("[database] using DSN: %s", safeDSN)

	if strings.Contains(dsn, "tls=custom") {
		if err := registerCustomTLS(); err != nil {
			return nil, err
		}
	}

	var gormLogger logger.Interface
	if strings.ToLower(getenv("ENV", "development")) == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	maxRetries := atoi(getenv("DB_CONNECT_RETRIES", "5"))
	var db *gorm.DB
	var err error
	backoff := time.Second
	for attempt := 0; attempt < maxRetries; attempt++ {
		db, err = gorm.Open(gormmysql.Open(dsn), &gorm.Config{Logger: gormLogger})
		if err == nil {
			break
		}
		log.Printf("[database] connect attempt %d failed: %v", attempt+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(atoi(getenv("DB_MAX_OPEN_CONNS", "25")))
	sqlDB.SetMaxIdleConns(atoi(getenv("DB_MAX_IDLE_CONNS", "25")))
	sqlDB.SetConnMaxLifetime(time.Duration(atoi(getenv("DB_CONN_MAX_LIFETIME", "3600"))) * time.Second)

	if getenv("DB_PING_ON_CONNECT", "true") == "true" {
		if err := pingWithTimeout(sqlDB, 5*time.Second); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
	}

	return db, nil
}

// registerCustomTLS loads the CA bundle (and optional client pair) and
// registers it with the driver under the name the DSN references.
func registerCustomTLS() error {
	tlsCfg := &tls.Config{}
	if caPath := getenv("DB_TLS_CA_PATH", ""); caPath != "" {
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return fmt.Errorf("failed reading DB TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return errors.New("failed to append CA certs")
		}
		tlsCfg.RootCAs = pool
	}
	clientCert := getenv("DB_TLS_CLIENT_CERT", "")
	clientKey := getenv("DB_TLS_CLIENT_KEY", "")
	if clientCert != "" && clientKey != "" {
		cert, err := tls.LoadX509KeyPair(clientCert, clientKey)
		if err != nil {
			return fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return mysqldriver.RegisterTLSConfig("custom", tlsCfg)
}

// IsDuplicateEntry reports whether err is a MySQL unique constraint
// violation (error 1062). Used to retry promo code assignment.
func IsDuplicateEntry(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	if v <= 0 {
		return 0
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		ch <- db.Ping()
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("ping timeout after %s", timeout)
	}
}
