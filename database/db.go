package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/surgecart/surge/config"
)

// Package-level singleton so every component in a process shares one pool.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	if err := createOrderTable(db); err != nil {
		return nil, err
	}
	if err := createOutboxTable(db); err != nil {
		return nil, err
	}
	if err := createConsumptionTable(db); err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS surge`)
	return err
}

// createOutboxTable creates the PostgreSQL table backing OutboxMessage.
func createOutboxTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS surge.outbox_messages (
			id SERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			business_key TEXT NOT NULL UNIQUE,
			exchange TEXT NOT NULL,
			routing_key TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
			retry_count INT NOT NULL DEFAULT 0,
			max_retry INT NOT NULL DEFAULT 3,
			next_retry_at TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating outbox_messages table: %v", err)
	}
	return err
}

// createConsumptionTable creates the PostgreSQL table backing
// ConsumptionRecord. The UNIQUE constraint on message_id is the idempotency
// mechanism, so it must never be relaxed.
func createConsumptionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS surge.consumption_records (
			id SERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			consumer_name TEXT NOT NULL,
			consume_time TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating consumption_records table: %v", err)
	}
	return err
}

// createOrderTable creates the PostgreSQL table for flash-sale orders.
func createOrderTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS surge.orders (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE,
			order_no TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INT NOT NULL,
			amount NUMERIC(20, 4) NOT NULL,
			status TEXT NOT NULL DEFAULT 'CREATED',
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating orders table: %v", err)
	}
	return err
}
