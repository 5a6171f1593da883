package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evertrust/banking/internal/alerts"
	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/config"
	"github.com/evertrust/banking/internal/database"
	"github.com/evertrust/banking/internal/ledger"
	mW "github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/notify"
	"github.com/evertrust/banking/internal/services"
	"github.com/evertrust/banking/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	config.Load()

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Core wiring: the engine owns every balance mutation; the sinks
	// run after its commits.
	store := ledger.NewStore(db, config.Ledger().LockTimeout)
	prefsStore := alerts.NewPrefsStore(db)
	alertStore := alerts.NewStore(db)
	auditRecorder := audit.NewRecorder(db)
	dispatcher := notify.NewDispatcher(redisClient, db)
	submitter := settlement.NewSubmitter()
	engine := ledger.NewEngine(store, prefsStore, alertStore, auditRecorder, dispatcher, submitter)

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()
	go dispatcher.Run(notifyCtx)

	authService := services.NewAuthService(db, redisClient, auditRecorder)
	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db, engine)
	billService := services.NewBillService(db, engine, auditRecorder)
	cardService := services.NewCardService(db, prefsStore, alertStore, auditRecorder)
	chequeService := services.NewChequeService(db, auditRecorder)
	depositService := services.NewDepositService(db, engine, auditRecorder, "./uploads/deposits")
	alertService := services.NewAlertService(alertStore, prefsStore, auditRecorder)
	auditService := services.NewAuditService(auditRecorder)

	mW.InitAuthMiddleware(redisClient)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/static/biller-logos/*", http.StripPrefix("/static/biller-logos/",
		mW.StaticFileServer("./static/biller-logos")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.Profile)

			r.Get("/accounts", accountService.ListAccounts)
			r.Post("/accounts", accountService.CreateAccount)
			r.Get("/accounts/{accountId}", accountService.GetAccount)

			r.Get("/transactions", transactionService.ListTransactions)
			r.Get("/transactions/{txId}", transactionService.GetTransaction)
			r.Post("/transactions/deposit", transactionService.Deposit)
			r.Post("/transactions/withdraw", transactionService.Withdraw)
			r.Post("/transactions/transfer", transactionService.TransferInternal)
			r.Post("/transactions/external", transactionService.TransferExternal)
			r.Post("/transactions/external/{transferId}/complete", transactionService.CompleteExternalTransfer)

			r.Get("/cheques", chequeService.ListCheques)
			r.Post("/cheques/request", chequeService.RequestCheque)
			r.Post("/cheques/{chequeId}/cancel", chequeService.CancelCheque)

			r.Get("/deposits", depositService.ListMobileDeposits)
			r.Post("/deposits/mobile", depositService.CreateMobileDeposit)
			r.Post("/deposits/{depositId}/resolve", depositService.ResolveMobileDeposit)

			r.Get("/billers", billService.ListBillers)
			r.Post("/billers", billService.CreateBiller)
			r.Get("/bills", billService.ListBills)
			r.Post("/bills/pay", billService.PayBill)

			r.Get("/cards", cardService.ListCards)
			r.Patch("/cards/{cardId}", cardService.UpdateCard)

			r.Get("/alerts", alertService.ListAlerts)
			r.Post("/alerts/{alertId}/read", alertService.MarkRead)
			r.Get("/alerts/preferences", alertService.GetPrefs)
			r.Patch("/alerts/preferences", alertService.UpdatePrefs)

			r.Get("/audit/events", auditService.ListEvents)
		})
	})

	serverCfg := config.Server()
	server := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      r,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}

	go func() {
		log.Printf("Server starting on :%s", serverCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopNotify()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
