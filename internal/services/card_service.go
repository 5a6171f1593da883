package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evertrust/banking/internal/alerts"
	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CardService struct {
	db         *sql.DB
	prefs      *alerts.PrefsStore
	alertStore *alerts.Store
	audit      *audit.Recorder
}

func NewCardService(db *sql.DB, prefs *alerts.PrefsStore, alertStore *alerts.Store, auditRecorder *audit.Recorder) *CardService {
	return &CardService{db: db, prefs: prefs, alertStore: alertStore, audit: auditRecorder}
}

type UpdateCardRequest struct {
	IsFrozen   *bool            `json:"is_frozen"`
	PerTxLimit *decimal.Decimal `json:"per_tx_limit"`
	DailyLimit *decimal.Decimal `json:"daily_limit"`
}

var (
	defaultPerTxLimit = decimal.NewFromInt(5000)
	defaultDailyLimit = decimal.NewFromInt(10000)

	minPerTxLimit = decimal.NewFromInt(1)
	maxPerTxLimit = decimal.NewFromInt(10000)
	minDailyLimit = decimal.NewFromInt(10)
	maxDailyLimit = decimal.NewFromInt(50000)
)

const cardColumns = `id, user_id, last4, brand, is_frozen, per_tx_limit, daily_limit, expires, created_at`

func scanCard(r interface{ Scan(...any) error }) (models.Card, error) {
	var c models.Card
	var perTx, daily string
	err := r.Scan(&c.ID, &c.UserID, &c.Last4, &c.Brand, &c.IsFrozen, &perTx, &daily, &c.Expires, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if c.PerTxLimit, err = decimal.NewFromString(perTx); err != nil {
		return c, err
	}
	c.DailyLimit, err = decimal.NewFromString(daily)
	return c, err
}

// ListCards returns the user's cards, creating the default card on
// first access.
func (s *CardService) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT `+cardColumns+`
		FROM cards
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		log.Printf("[CARD] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch cards", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Printf("[CARD] Scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch cards", http.StatusInternalServerError, nil)
			return
		}
		cards = append(cards, c)
	}
	rows.Close()

	if len(cards) == 0 {
		c, err := scanCard(s.db.QueryRowContext(r.Context(), `
			INSERT INTO cards (user_id, last4, brand, is_frozen, per_tx_limit, daily_limit, expires, created_at)
			VALUES ($1, '1234', 'Visa', FALSE, $2, $3, $4, NOW())
			RETURNING `+cardColumns,
			userID, defaultPerTxLimit.StringFixed(2), defaultDailyLimit.StringFixed(2),
			time.Now().AddDate(3, 0, 0)))
		if err != nil {
			log.Printf("[CARD] Default card creation failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch cards", http.StatusInternalServerError, nil)
			return
		}
		cards = append(cards, c)
	}

	writeJSON(w, http.StatusOK, cards)
}

// UpdateCard applies a partial card update and raises a card_change
// alert naming only the fields that actually changed.
func (s *CardService) UpdateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cardID, err := strconv.ParseInt(chi.URLParam(r, "cardId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid card id", http.StatusBadRequest, nil)
		return
	}

	var req UpdateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if req.PerTxLimit != nil && (req.PerTxLimit.LessThan(minPerTxLimit) || req.PerTxLimit.GreaterThan(maxPerTxLimit)) {
		SendErrorResponse(w, "per_tx_limit out of range", http.StatusBadRequest, nil)
		return
	}
	if req.DailyLimit != nil && (req.DailyLimit.LessThan(minDailyLimit) || req.DailyLimit.GreaterThan(maxDailyLimit)) {
		SendErrorResponse(w, "daily_limit out of range", http.StatusBadRequest, nil)
		return
	}

	card, err := scanCard(s.db.QueryRowContext(r.Context(), `
		SELECT `+cardColumns+`
		FROM cards
		WHERE id = $1 AND user_id = $2`, cardID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Card not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[CARD] Fetch failed for card %d: %v", cardID, err)
		SendErrorResponse(w, "Failed to fetch card", http.StatusInternalServerError, nil)
		return
	}

	var changes alerts.CardChanges
	if req.IsFrozen != nil && *req.IsFrozen != card.IsFrozen {
		card.IsFrozen = *req.IsFrozen
		changes.Frozen = req.IsFrozen
	}
	if req.PerTxLimit != nil && !req.PerTxLimit.Equal(card.PerTxLimit) {
		card.PerTxLimit = *req.PerTxLimit
		changes.PerTxLimit = req.PerTxLimit
	}
	if req.DailyLimit != nil && !req.DailyLimit.Equal(card.DailyLimit) {
		card.DailyLimit = *req.DailyLimit
		changes.DailyLimit = req.DailyLimit
	}

	if changes.Empty() {
		writeJSON(w, http.StatusOK, card)
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		UPDATE cards
		SET is_frozen = $1, per_tx_limit = $2, daily_limit = $3
		WHERE id = $4 AND user_id = $5`,
		card.IsFrozen, card.PerTxLimit.StringFixed(2), card.DailyLimit.StringFixed(2), card.ID, userID)
	if err != nil {
		log.Printf("[CARD] Update failed for card %d: %v", cardID, err)
		SendErrorResponse(w, "Failed to update card", http.StatusInternalServerError, nil)
		return
	}

	prefs, err := s.prefs.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Printf("[CARD] Prefs lookup failed for user %d: %v", userID, err)
	} else if a := alerts.EvaluateCardChange(userID, changes, prefs); a != nil {
		if err := s.alertStore.Insert(r.Context(), a); err != nil {
			log.Printf("[CARD] Failed to persist card_change alert for user %d: %v", userID, err)
		}
	}

	if s.audit != nil {
		payload := audit.CardUpdated{Frozen: changes.Frozen}
		if changes.PerTxLimit != nil {
			payload.PerTxLimit = changes.PerTxLimit.StringFixed(2)
		}
		if changes.DailyLimit != nil {
			payload.DailyLimit = changes.DailyLimit.StringFixed(2)
		}
		s.audit.Record(r.Context(), userID, "card", card.ID, payload)
	}

	writeJSON(w, http.StatusOK, card)
}
