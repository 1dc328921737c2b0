package repository

import (
	"context"
	"encoding/json"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ticketing/internal/domain/pricing"
)

type PricingRulesRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewPricingRulesRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *PricingRulesRepo {
	return &PricingRulesRepo{db: db, getter: getter}
}

func (r *PricingRulesRepo) Create(ctx context.Context, rule pricing.Rule) (uuid.UUID, error) {
	payload, err := json.Marshal(rule.Kind)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal rule payload: %w", err)
	}

	var id uuid.UUID
	query := `
		INSERT INTO pricing_rules (
			ticket_type_id, rule_type, payload, is_active
		) VALUES (
			$1, $2, $3, $4
		) RETURNING id`

	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		rule.TicketTypeId,
		rule.Kind.Name(),
		payload,
		rule.IsActive,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create pricing rule: %w", err)
	}

	return id, nil
}

func (r *PricingRulesRepo) ListActiveForTicketType(ctx context.Context, ticketTypeID uuid.UUID) ([]pricing.Rule, error) {
	query := `
		SELECT id, ticket_type_id, rule_type, payload, is_active
		FROM pricing_rules
		WHERE ticket_type_id = $1
		  AND is_active`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, query, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.Rule
	for rows.Next() {
		var (
			rule     pricing.Rule
			ruleType string
			payload  []byte
		)
		if err := rows.Scan(&rule.Id, &rule.TicketTypeId, &ruleType, &payload, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}

		rule.Kind, err = unmarshalKind(ruleType, payload)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pricing rules: %w", err)
	}

	return rules, nil
}

func unmarshalKind(ruleType string, payload []byte) (pricing.Kind, error) {
	switch ruleType {
	case pricing.KindEarlyBird:
		var k pricing.EarlyBird
		if err := json.Unmarshal(payload, &k); err != nil {
			return nil, fmt.Errorf("failed to unmarshal early bird rule: %w", err)
		}
		return k, nil
	case pricing.KindLastMinute:
		var k pricing.LastMinute
		if err := json.Unmarshal(payload, &k); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last minute rule: %w", err)
		}
		return k, nil
	case pricing.KindDemandBased:
		var k pricing.DemandBased
		if err := json.Unmarshal(payload, &k); err != nil {
			return nil, fmt.Errorf("failed to unmarshal demand based rule: %w", err)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown pricing rule type %q", ruleType)
	}
}
