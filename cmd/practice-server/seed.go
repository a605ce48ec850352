package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/accounting"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/scheduling"
	"github.com/Fafulop/healthcare-platform-sub003/internal/domain/task"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/db"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/events"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/lock"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a tenant with demo doctors' slots, tasks, sales and ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			doctors, _ := cmd.Flags().GetInt("doctors")
			days, _ := cmd.Flags().GetInt("days")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger := newLogger(cfg.Env)

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return err
			}
			defer conn.Release()
			if err := db.SetSearchPath(ctx, conn, tenant); err != nil {
				return err
			}
			ctx = db.WithConn(db.WithTenant(ctx, tenant), conn)

			svcs := newServices(pool, cfg, lock.Nop{}, events.Nop{}, logger)
			gofakeit.Seed(time.Now().UnixNano())

			start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
			for i := 0; i < doctors; i++ {
				doctorID := uuid.New()
				n, err := seedDoctor(ctx, svcs, doctorID, start, days)
				if err != nil {
					return fmt.Errorf("seed doctor %s: %w", doctorID, err)
				}
				fmt.Printf("doctor %s: %d slots\n", doctorID, n)
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "default", "Tenant to seed")
	cmd.Flags().Int("doctors", 3, "Number of demo doctors")
	cmd.Flags().Int("days", 14, "Days of slots to create, starting tomorrow")
	return cmd
}

func randomPrice(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(gofakeit.Price(min, max)).Round(2)
}

func seedDoctor(ctx context.Context, svcs *services, doctorID uuid.UUID, start time.Time, days int) (int, error) {
	discount := decimal.NewFromInt(int64(gofakeit.Number(0, 3) * 5))
	pct := scheduling.DiscountPercentage
	res, err := svcs.scheduling.CreateSlots(ctx, scheduling.CreateSlotsRequest{
		DoctorID:     doctorID,
		Mode:         scheduling.ModeRecurring,
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, days-1),
		DaysOfWeek:   []int{0, 1, 2, 3, 4},
		StartTime:    "09:00",
		EndTime:      "14:00",
		Duration:     []int{30, 60}[gofakeit.Number(0, 1)],
		BreakStart:   "11:00",
		BreakEnd:     "11:30",
		BasePrice:    randomPrice(500, 1500),
		Discount:     &discount,
		DiscountType: &pct,
		MaxBookings:  1,
	})
	if err != nil {
		return 0, err
	}

	for j, sl := range res.Slots {
		if j%4 != 0 {
			continue
		}
		_, err := svcs.scheduling.CreateBooking(ctx, sl.ID, scheduling.NewBooking{
			PatientName:  gofakeit.Name(),
			PatientEmail: gofakeit.Email(),
		})
		if err != nil {
			return 0, fmt.Errorf("booking: %w", err)
		}
	}

	for k := 0; k < 3; k++ {
		due := start.AddDate(0, 0, gofakeit.Number(0, days-1))
		t := &task.Task{DoctorID: doctorID, Title: gofakeit.Sentence(4), DueDate: &due}
		if k == 0 {
			st, et := "12:00", "13:00"
			t.StartTime, t.EndTime = &st, &et
		}
		if err := svcs.tasks.CreateTask(ctx, t); err != nil {
			return 0, fmt.Errorf("task: %w", err)
		}
	}

	for k := 0; k < 5; k++ {
		total := randomPrice(300, 3000)
		paid := []decimal.Decimal{decimal.Zero, total.Div(decimal.NewFromInt(2)).Round(2), total}[gofakeit.Number(0, 2)]
		sale := &accounting.Sale{DoctorID: doctorID, ClientName: gofakeit.Name(), SaleDate: start.AddDate(0, 0, -k),
			Total: total, AmountPaid: paid}
		if err := svcs.accounting.CreateSale(ctx, sale); err != nil {
			return 0, fmt.Errorf("sale: %w", err)
		}
		entry := &accounting.LedgerEntry{DoctorID: doctorID, EntryType: accounting.EntryIncome,
			Concept: "Venta " + sale.Folio, EntryDate: sale.SaleDate, Amount: total, AmountPaid: paid, SaleID: &sale.ID}
		if err := svcs.accounting.CreateLedgerEntry(ctx, entry); err != nil {
			return 0, fmt.Errorf("ledger: %w", err)
		}
	}

	cost := randomPrice(100, 800)
	purchase := &accounting.Purchase{DoctorID: doctorID, SupplierName: gofakeit.Company(), PurchaseDate: start,
		Total: cost}
	if err := svcs.accounting.CreatePurchase(ctx, purchase); err != nil {
		return 0, fmt.Errorf("purchase: %w", err)
	}
	err = svcs.accounting.CreateLedgerEntry(ctx, &accounting.LedgerEntry{DoctorID: doctorID, EntryType: accounting.EntryExpense,
		Concept: "Compra " + purchase.Folio, EntryDate: start, Amount: cost, PurchaseID: &purchase.ID})
	if err != nil {
		return 0, fmt.Errorf("ledger: %w", err)
	}
	return res.Count, nil
}
