package file

import (
	"context"
	"errors"
	"time"
)

const ruleResultsKind = "rule_results"

var errRuleResultNotFound = errors.New("rule result not found")

type ruleResultRow struct {
	RuleUUID  string    `json:"rule_uuid"`
	UserID    string    `json:"user_id"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleResultRepository stores per-(rule node, user) cached booleans for the
// incremental matcher.
type RuleResultRepository struct {
	p *Persistence
}

func resultID(ruleUUID, userID string) string {
	return ruleUUID + "__" + userID
}

func (r *RuleResultRepository) Result(_ context.Context, ruleUUID, userID string) (bool, bool, error) {
	var row ruleResultRow

	err := r.p.read(ruleResultsKind, resultID(ruleUUID, userID), &row, errRuleResultNotFound)
	if err != nil {
		if errors.Is(err, errRuleResultNotFound) {
			return false, false, nil
		}

		return false, false, err
	}

	return row.Value, true, nil
}

func (r *RuleResultRepository) SaveResult(_ context.Context, ruleUUID, userID string, value bool) error {
	return r.p.write(ruleResultsKind, resultID(ruleUUID, userID), &ruleResultRow{
		RuleUUID:  ruleUUID,
		UserID:    userID,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
}
