package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func InitializeDBSchema(db *sqlx.DB) error {
	statements := []struct {
		table string
		ddl   string
	}{
		{"events", `
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name VARCHAR(255) NOT NULL,
	category VARCHAR(255) NOT NULL DEFAULT '',
	venue VARCHAR(255) NOT NULL,
	start_time TIMESTAMP WITH TIME ZONE NOT NULL,
	end_time TIMESTAMP WITH TIME ZONE NOT NULL
);`},
		{"ticket_types", `
CREATE TABLE IF NOT EXISTS ticket_types (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	event_id UUID NOT NULL REFERENCES events (id),
	name VARCHAR(255) NOT NULL,
	base_price NUMERIC(10, 2) NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	sold INTEGER NOT NULL DEFAULT 0 CHECK (sold >= 0 AND sold <= quantity),
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);`},
		{"pricing_rules", `
CREATE TABLE IF NOT EXISTS pricing_rules (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	ticket_type_id UUID NOT NULL REFERENCES ticket_types (id),
	rule_type VARCHAR(32) NOT NULL,
	payload JSONB NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);`},
		{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	event_id UUID NOT NULL REFERENCES events (id),
	user_id UUID NOT NULL,
	status VARCHAR(16) NOT NULL,
	total_amount NUMERIC(10, 2) NOT NULL,
	is_free_event BOOLEAN NOT NULL DEFAULT FALSE,
	booking_date TIMESTAMP WITH TIME ZONE NOT NULL,
	feedback_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
	feedback_reminder_sent_at TIMESTAMP WITH TIME ZONE
);`},
		{"tickets", `
CREATE TABLE IF NOT EXISTS tickets (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	booking_id UUID NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
	ticket_type_id UUID NOT NULL REFERENCES ticket_types (id),
	holder_name VARCHAR(255) NOT NULL DEFAULT '',
	holder_phone VARCHAR(64) NOT NULL DEFAULT '',
	price NUMERIC(10, 2) NOT NULL,
	status VARCHAR(16) NOT NULL,
	qr_code VARCHAR(64) NOT NULL UNIQUE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);`},
		{"payments", `
CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	booking_id UUID NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
	amount NUMERIC(10, 2) NOT NULL,
	status VARCHAR(16) NOT NULL,
	payment_reference VARCHAR(64) NOT NULL UNIQUE,
	checkout_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	paid_at TIMESTAMP WITH TIME ZONE,
	reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
	reminder_sent_at TIMESTAMP WITH TIME ZONE
);`},
		{"notification_log", `
CREATE TABLE IF NOT EXISTS notification_log (
	reference_key VARCHAR(255) PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);`},
	}

	for _, s := range statements {
		if _, err := db.ExecContext(context.Background(), s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}
	return nil
}
