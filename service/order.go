package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/repository"
)

// OrderInput is the payload of a save-order request
type OrderInput struct {
	WhatsAppNumber string `json:"whatsapp_number"`
	OrderDate      string `json:"order_date"`
	CalledDate     string `json:"called_date"`
	Colour         string `json:"colour"`
}

type OrderService struct {
	repo repository.OrderRepository
	now  func() time.Time
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo, now: time.Now}
}

// Validate checks the required fields and the date formats
func (in OrderInput) Validate() (orderDate, calledDate time.Time, err error) {
	verr := &ValidationError{}
	for _, f := range []struct{ name, value string }{
		{"whatsapp_number", in.WhatsAppNumber},
		{"order_date", in.OrderDate},
		{"called_date", in.CalledDate},
		{"colour", in.Colour},
	} {
		if strings.TrimSpace(f.value) == "" {
			verr.Missing = append(verr.Missing, f.name)
		}
	}
	if len(verr.Missing) > 0 {
		return time.Time{}, time.Time{}, verr
	}

	orderDate, err = time.Parse(model.DateLayout, strings.TrimSpace(in.OrderDate))
	if err != nil {
		verr.Malformed = append(verr.Malformed, "order_date")
	}
	calledDate, err = time.Parse(model.DateLayout, strings.TrimSpace(in.CalledDate))
	if err != nil {
		verr.Malformed = append(verr.Malformed, "called_date")
	}
	if len(verr.Malformed) > 0 {
		return time.Time{}, time.Time{}, verr
	}
	return orderDate, calledDate, nil
}

// Save validates and stores an order
func (s *OrderService) Save(ctx context.Context, in OrderInput) (*model.OrderRecord, error) {
	orderDate, calledDate, err := in.Validate()
	if err != nil {
		return nil, err
	}

	order := &model.OrderRecord{
		WhatsAppNumber: strings.TrimSpace(in.WhatsAppNumber),
		OrderDate:      orderDate,
		CalledDate:     calledDate,
		Colour:         strings.TrimSpace(in.Colour),
		Timestamp:      s.now(),
	}
	if err := s.repo.InsertOrder(ctx, order); err != nil {
		logger.Error(ctx, "failed to store order", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logger.Info(ctx, "order saved", "order_id", order.ID, "colour", order.Colour)
	return order, nil
}

// LatestByColour returns the most recent order date of every colour
func (s *OrderService) LatestByColour(ctx context.Context) (map[string]string, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return LatestOrderDates(orders), nil
}

// LatestOrderDates groups orders by colour and keeps the newest order date.
// Orders on the same date are ranked by save time, then by id.
func LatestOrderDates(orders []model.OrderRecord) map[string]string {
	sorted := make([]model.OrderRecord, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.OrderDate.Equal(b.OrderDate) {
			return a.OrderDate.After(b.OrderDate)
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})

	latest := make(map[string]string)
	for _, o := range sorted {
		if _, ok := latest[o.Colour]; !ok {
			latest[o.Colour] = o.OrderDate.Format(model.DateLayout)
		}
	}
	return latest
}
