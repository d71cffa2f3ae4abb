package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carwash/internal/carwash"
	"carwash/internal/catalog"
	"carwash/pkg/config"
	"carwash/pkg/db"
	"carwash/pkg/session"
)

func main() {
	var (
		baseURL     = flag.String("base-url", "", "API base url (defaults to http://localhost<HTTP_ADDR>)")
		ownerID     = flag.Int64("owner-user-id", 1001, "user id of the carwash owner")
		customerID  = flag.Int64("customer-user-id", 2001, "user id of the test customer")
		carwashName = flag.String("carwash-name", "Dev Oto Yıkama", "name used when seeding the carwash")
		serviceName = flag.String("service-name", "İç Dış Yıkama", "service seeded for the carwash")
		price       = flag.String("price", "350.00", "service price")
		skipBooking = flag.Bool("skip-booking", false, "only seed and print tokens")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.Session.Secret == "" {
		fmt.Fprintln(os.Stderr, "missing SESSION_SECRET (env or .env)")
		os.Exit(2)
	}
	if *baseURL == "" {
		*baseURL = defaultBaseURL(cfg.HTTPAddr)
	}
	amount, err := decimal.NewFromString(*price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -price: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	carwashes := carwash.NewRepository(pool)
	cw, err := carwashes.GetByOwner(ctx, *ownerID)
	if errors.Is(err, carwash.ErrNotFound) {
		cw, err = carwashes.Create(ctx, *ownerID, *carwashName, carwash.StateOpen)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed carwash: %v\n", err)
		os.Exit(1)
	}

	services := catalog.NewRepository(pool)
	svc, err := services.Create(ctx, cw.ID, *serviceName, amount, 45)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed service: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	businessToken, err := session.Issue(session.Identity{UserID: *ownerID, Role: session.RoleCarwash, CarwashID: cw.ID}, cfg.Session.Audience, cfg.Session.Secret, now, cfg.Session.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue business token: %v\n", err)
		os.Exit(1)
	}
	customerToken, err := session.Issue(session.Identity{UserID: *customerID, Role: session.RoleCustomer}, cfg.Session.Audience, cfg.Session.Secret, now, cfg.Session.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue customer token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seed complete.\n")
	fmt.Printf("carwash_id=%d status=%s visible=%v\n", cw.ID, cw.Status, cw.Visible())
	fmt.Printf("service_id=%d price=%s\n", svc.ID, svc.Price.StringFixed(2))
	fmt.Printf("business_token=%s\n", businessToken)
	fmt.Printf("customer_token=%s\n", customerToken)

	if *skipBooking {
		return
	}

	tomorrow := now.In(cfg.Location).AddDate(0, 0, 1)
	body, _ := json.Marshal(map[string]any{
		"carwashId": cw.ID,
		"serviceId": svc.ID,
		"vehicle":   map[string]string{"plate": "34 DEV 001", "model": "Dev Car"},
		"date":      tomorrow.Format("2006-01-02"),
		"time":      "10:00",
		"notes":     "created by devflow",
	})
	req, err := http.NewRequest(http.MethodPost, *baseURL+"/v1/bookings", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+customerToken)

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "post booking: %v\n", err)
		fmt.Fprintf(os.Stderr, "tip: is the API running, and is HTTP_ADDR set correctly? base_url=%s\n", *baseURL)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "booking status=%d body=%s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var created struct {
		ID            int64  `json:"id"`
		BookingNumber string `json:"bookingNumber"`
		Status        string `json:"status"`
	}
	_ = json.Unmarshal(b, &created)
	fmt.Printf("booking_id=%d number=%s status=%s\n", created.ID, created.BookingNumber, created.Status)

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("- Business approve:\n")
	fmt.Printf("  POST %s/v1/business/bookings/%d/approve (Authorization: Bearer $business_token)\n", *baseURL, created.ID)
	fmt.Printf("- After the slot passes, run the sweeper:\n")
	fmt.Printf("  go run ./cmd/sweep\n")
}

func defaultBaseURL(httpAddr string) string {
	// httpAddr is typically ":8080" or "0.0.0.0:8080".
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	if strings.HasPrefix(addr, "127.0.0.1:") {
		return "http://" + addr
	}
	return "http://localhost:8080"
}
