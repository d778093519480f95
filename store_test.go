package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/dispatch/internal/apierror"
	"github.com/blnkfinance/dispatch/model"
)

// memoryStore is an in-memory datasource enforcing the same unique
// constraints as the SQL schema.
type memoryStore struct {
	mu        sync.Mutex
	seq       int
	orders    []model.RecurringOrder
	schedules []model.DispatchSchedule
	links     []model.RecurringOrderScheduleLink
	stops     []model.DeliveryStop

	listErr      error
	scheduleErrs map[string]error // by date key
	stopErrs     map[string]error // by recurring order id
}

func newMemoryStore(orders ...model.RecurringOrder) *memoryStore {
	return &memoryStore{
		orders:       orders,
		scheduleErrs: map[string]error{},
		stopErrs:     map[string]error{},
	}
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%04d", prefix, s.seq)
}

func (s *memoryStore) ListActiveRecurringOrders(_ context.Context) ([]model.RecurringOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	active := []model.RecurringOrder{}
	for _, order := range s.orders {
		if order.ActiveStatus {
			active = append(active, order)
		}
	}
	return active, nil
}

func (s *memoryStore) GetRecurringOrder(_ context.Context, id string) (*model.RecurringOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.RecurringOrderID == id {
			o := order
			return &o, nil
		}
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "Recurring order not found", nil)
}

func (s *memoryStore) FindSchedulesForDate(_ context.Context, date time.Time) ([]model.DispatchSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scheduleErrs[model.DateKey(date)]; err != nil {
		return nil, err
	}
	found := []model.DispatchSchedule{}
	for _, schedule := range s.schedules {
		if model.SameDate(schedule.ScheduleDate, date) {
			found = append(found, schedule)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].IsCanonical && !found[j].IsCanonical
	})
	return found, nil
}

func (s *memoryStore) CreateSchedule(_ context.Context, schedule model.DispatchSchedule) (model.DispatchSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.schedules {
		if schedule.IsCanonical && existing.IsCanonical && model.SameDate(existing.ScheduleDate, schedule.ScheduleDate) {
			return model.DispatchSchedule{}, apierror.NewAPIError(apierror.ErrConflict, "Schedule for this date already exists", nil)
		}
	}
	schedule.ScheduleID = s.nextID("sch")
	schedule.ScheduleDate = model.NormalizeDate(schedule.ScheduleDate)
	schedule.CreatedAt = time.Now()
	s.schedules = append(s.schedules, schedule)
	return schedule, nil
}

func (s *memoryStore) FindLink(_ context.Context, recurringOrderID, scheduleID string) (*model.RecurringOrderScheduleLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.RecurringOrderID == recurringOrderID && link.ScheduleID == scheduleID {
			l := link
			return &l, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CreateLink(_ context.Context, link model.RecurringOrderScheduleLink) (model.RecurringOrderScheduleLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.RecurringOrderID == link.RecurringOrderID && existing.ScheduleID == link.ScheduleID {
			return model.RecurringOrderScheduleLink{}, apierror.NewAPIError(apierror.ErrConflict, "Recurring order is already linked to this schedule", nil)
		}
	}
	link.LinkID = s.nextID("lnk")
	s.links = append(s.links, link)
	return link, nil
}

func (s *memoryStore) FindStop(_ context.Context, scheduleID, customerID string) (*model.DeliveryStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stop := range s.stops {
		if stop.MasterScheduleID == scheduleID && stop.CustomerID == customerID {
			st := stop
			return &st, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) CreateStop(_ context.Context, stop model.DeliveryStop) (model.DeliveryStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stopErrs[stop.RecurringOrderID]; err != nil {
		return model.DeliveryStop{}, err
	}
	for _, existing := range s.stops {
		if existing.MasterScheduleID == stop.MasterScheduleID && existing.CustomerID == stop.CustomerID &&
			existing.RecurringOrderID == stop.RecurringOrderID {
			return model.DeliveryStop{}, apierror.NewAPIError(apierror.ErrConflict, "Delivery stop already exists", nil)
		}
	}
	stop.StopID = s.nextID("stp")
	s.stops = append(s.stops, stop)
	return stop, nil
}

func (s *memoryStore) CustomerHasDelivery(_ context.Context, customerID string, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stop := range s.stops {
		if stop.CustomerID != customerID {
			continue
		}
		for _, schedule := range s.schedules {
			if schedule.ScheduleID == stop.MasterScheduleID && model.SameDate(schedule.ScheduleDate, date) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memoryStore) counts() (schedules, links, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules), len(s.links), len(s.stops)
}

func (s *memoryStore) stopsFor(scheduleID string) []model.DeliveryStop {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []model.DeliveryStop
	for _, stop := range s.stops {
		if stop.MasterScheduleID == scheduleID {
			found = append(found, stop)
		}
	}
	return found
}

func newOrder(id, customerID string, frequency model.Frequency, preferredDay string) model.RecurringOrder {
	return model.RecurringOrder{
		RecurringOrderID: id,
		CustomerID:       customerID,
		Frequency:        frequency,
		PreferredDay:     preferredDay,
		PreferredTime:    "morning",
		ActiveStatus:     true,
		CreatedAt:        time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{
				ProductID: gofakeit.UUID(),
				Name:      gofakeit.Noun(),
				Quantity:  int64(gofakeit.Number(1, 10)),
				UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 20)),
			},
		},
		Customer: &model.CustomerSnapshot{
			CustomerID: customerID,
			Name:       gofakeit.Name(),
			Address:    gofakeit.Street(),
			Phone:      gofakeit.Phone(),
		},
	}
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 14, 30, 0, 0, time.UTC)
	}
}
