package alerts

import (
	"testing"

	"github.com/evertrust/banking/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func evalInput(kind models.TransactionKind, amount, balance int64) Input {
	return Input{
		UserID:      7,
		Account:     &models.Account{ID: 1, UserID: 7, Number: "1000000001", Balance: decimal.NewFromInt(balance)},
		Transaction: &models.Transaction{AccountID: 1, Kind: kind, Amount: decimal.NewFromInt(amount)},
		Prefs:       models.DefaultAlertPrefs(7),
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("low balance fires strictly below the threshold", func(t *testing.T) {
		raised := Evaluate(evalInput(models.KindWithdrawal, 60, 90))
		assert.Len(t, raised, 1)
		assert.Equal(t, models.AlertLowBalance, raised[0].Type)
		assert.Equal(t, "Low balance alert: Account 1000000001 has $90.00", raised[0].Message)

		raised = Evaluate(evalInput(models.KindWithdrawal, 60, 100))
		assert.Empty(t, raised)
	})

	t.Run("large transaction fires at the threshold", func(t *testing.T) {
		raised := Evaluate(evalInput(models.KindDeposit, 1000, 5000))
		assert.Len(t, raised, 1)
		assert.Equal(t, models.AlertLargeTx, raised[0].Type)
		assert.Equal(t, "Large deposit of $1000.00 to account 1000000001", raised[0].Message)

		raised = Evaluate(evalInput(models.KindDeposit, 999, 5000))
		assert.Empty(t, raised)
	})

	t.Run("message wording follows the transaction kind", func(t *testing.T) {
		assert.Equal(t, "Large withdrawal of $1000.00 from account 1000000001",
			Evaluate(evalInput(models.KindWithdrawal, 1000, 5000))[0].Message)
		assert.Equal(t, "Large transfer of $1000.00 from account 1000000001",
			Evaluate(evalInput(models.KindTransfer, 1000, 5000))[0].Message)
		assert.Equal(t, "Large external transfer of $1025.00 from account 1000000001",
			Evaluate(evalInput(models.KindExternalTransfer, 1025, 5000))[0].Message)
	})

	t.Run("one operation raises at most one alert per type", func(t *testing.T) {
		raised := Evaluate(evalInput(models.KindWithdrawal, 1000, 50))
		assert.Len(t, raised, 2)
		assert.Equal(t, models.AlertLowBalance, raised[0].Type)
		assert.Equal(t, models.AlertLargeTx, raised[1].Type)
	})

	t.Run("disabled preferences suppress their alert", func(t *testing.T) {
		in := evalInput(models.KindWithdrawal, 1000, 50)
		in.Prefs.LowBalance = false
		in.Prefs.LargeTx = false
		assert.Empty(t, Evaluate(in))
	})
}

func TestEvaluateCardChange(t *testing.T) {
	prefs := models.DefaultAlertPrefs(7)
	frozen := true
	limit := decimal.NewFromInt(500)

	t.Run("lists only the fields that changed", func(t *testing.T) {
		a := EvaluateCardChange(7, CardChanges{Frozen: &frozen, PerTxLimit: &limit}, prefs)
		assert.NotNil(t, a)
		assert.Equal(t, models.AlertCardChange, a.Type)
		assert.Equal(t, "Card settings changed: frozen: true, per_tx_limit: 500.00", a.Message)
	})

	t.Run("nothing changed means no alert", func(t *testing.T) {
		assert.Nil(t, EvaluateCardChange(7, CardChanges{}, prefs))
	})

	t.Run("respects the card change preference", func(t *testing.T) {
		off := prefs
		off.CardChange = false
		assert.Nil(t, EvaluateCardChange(7, CardChanges{Frozen: &frozen}, off))
	})
}
