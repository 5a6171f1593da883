package alerts

import (
	"fmt"
	"strings"

	"github.com/evertrust/banking/internal/models"
	"github.com/shopspring/decimal"
)

// Input captures the post-mutation state one ledger operation produced.
// Prefs must come from the same transaction snapshot that performed the
// mutation.
type Input struct {
	UserID      int64
	Account     *models.Account
	Transaction *models.Transaction
	Prefs       models.AlertPrefs
}

// Evaluate decides which alerts a committed operation raises. It is
// deterministic and side-effect-free; persisting the results and
// scheduling delivery is the caller's job. At most one alert per type
// is emitted for a single operation.
func Evaluate(in Input) []models.Alert {
	var out []models.Alert

	if in.Prefs.LowBalance && in.Account.Balance.LessThan(in.Prefs.LowBalanceThreshold) {
		out = append(out, models.Alert{
			UserID: in.UserID,
			Type:   models.AlertLowBalance,
			Message: fmt.Sprintf("Low balance alert: Account %s has $%s",
				in.Account.Number, in.Account.Balance.StringFixed(2)),
		})
	}

	if in.Prefs.LargeTx && in.Transaction.Amount.GreaterThanOrEqual(in.Prefs.LargeTxThreshold) {
		out = append(out, models.Alert{
			UserID:  in.UserID,
			Type:    models.AlertLargeTx,
			Message: largeTxMessage(in.Transaction, in.Account),
		})
	}

	return out
}

func largeTxMessage(t *models.Transaction, acc *models.Account) string {
	amount := t.Amount.StringFixed(2)
	switch t.Kind {
	case models.KindDeposit:
		return fmt.Sprintf("Large deposit of $%s to account %s", amount, acc.Number)
	case models.KindTransfer:
		return fmt.Sprintf("Large transfer of $%s from account %s", amount, acc.Number)
	case models.KindExternalTransfer:
		return fmt.Sprintf("Large external transfer of $%s from account %s", amount, acc.Number)
	default:
		return fmt.Sprintf("Large withdrawal of $%s from account %s", amount, acc.Number)
	}
}

// CardChanges holds the card fields an update actually modified. Nil
// means unchanged; unchanged fields never appear in the alert message.
type CardChanges struct {
	Frozen     *bool
	PerTxLimit *decimal.Decimal
	DailyLimit *decimal.Decimal
}

func (c CardChanges) Empty() bool {
	return c.Frozen == nil && c.PerTxLimit == nil && c.DailyLimit == nil
}

// EvaluateCardChange is invoked by the card-management path when a card
// setting actually changed. Returns nil when the preference is off or
// nothing changed.
func EvaluateCardChange(userID int64, changes CardChanges, prefs models.AlertPrefs) *models.Alert {
	if !prefs.CardChange || changes.Empty() {
		return nil
	}

	var parts []string
	if changes.Frozen != nil {
		parts = append(parts, fmt.Sprintf("frozen: %t", *changes.Frozen))
	}
	if changes.PerTxLimit != nil {
		parts = append(parts, fmt.Sprintf("per_tx_limit: %s", changes.PerTxLimit.StringFixed(2)))
	}
	if changes.DailyLimit != nil {
		parts = append(parts, fmt.Sprintf("daily_limit: %s", changes.DailyLimit.StringFixed(2)))
	}

	return &models.Alert{
		UserID:  userID,
		Type:    models.AlertCardChange,
		Message: "Card settings changed: " + strings.Join(parts, ", "),
	}
}
