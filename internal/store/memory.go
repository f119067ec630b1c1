package store

import (
	"context"
	"sync"
	"time"

	ordererrors "github.com/ordertrack/ordertrack/internal/errors"
	"github.com/ordertrack/ordertrack/internal/order"
	"github.com/ordertrack/ordertrack/internal/status"
)

// memStore implements OrderStore using in-memory maps behind a single
// mutex. It is the canonical volatile store: one writer at a time,
// readers only ever see fully-committed state.
type memStore struct {
	mu         sync.Mutex
	orders     map[int64]*order.Order
	ids        []int64 // insertion order for List
	engine     *status.Engine
	onePer     bool
	nextID     int64
	nextItemID int64
	now        func() time.Time
}

// NewMemStore creates a new in-memory OrderStore. When onePerOwner is
// true, Create rejects a second live order for the same owner.
func NewMemStore(engine *status.Engine, onePerOwner bool) OrderStore {
	return &memStore{
		orders:     make(map[int64]*order.Order),
		engine:     engine,
		onePer:     onePerOwner,
		nextID:     1,
		nextItemID: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *memStore) Create(_ context.Context, owner string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onePer {
		for _, id := range s.ids {
			if s.orders[id].Owner == owner {
				return nil, ordererrors.ErrOwnerConflict
			}
		}
	}

	now := s.now()
	o := &order.Order{
		ID:        s.nextID,
		Owner:     owner,
		Items:     []order.LineItem{},
		Status:    order.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.RecordStatus(order.StatusPending, now)
	s.nextID++
	s.orders[o.ID] = o
	s.ids = append(s.ids, o.ID)

	return o.Clone(), nil
}

func (s *memStore) Get(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *memStore) GetByOwner(_ context.Context, owner string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.ids {
		if s.orders[id].Owner == owner {
			return s.orders[id].Clone(), nil
		}
	}
	return nil, ordererrors.ErrOrderNotFound
}

func (s *memStore) List(_ context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]order.Order, 0, len(s.ids))
	for _, id := range s.ids {
		list = append(list, *s.orders[id].Clone())
	}
	return list, nil
}

func (s *memStore) AddItem(_ context.Context, id int64, item NewItem) (*order.Order, error) {
	if item.Quantity < 1 || item.UnitPrice <= 0 {
		return nil, ordererrors.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}

	if i := o.ItemIndexByProduct(item.ProductRef); i >= 0 {
		o.Items[i].Quantity += item.Quantity
	} else {
		o.Items = append(o.Items, order.LineItem{
			ID:         s.nextItemID,
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
		s.nextItemID++
	}
	o.Recompute()
	o.UpdatedAt = s.now()

	return o.Clone(), nil
}

func (s *memStore) UpdateItemQuantity(_ context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
	if quantity < 0 {
		return nil, ordererrors.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}
	i := o.ItemIndex(itemID)
	if i < 0 {
		return nil, ordererrors.ErrItemNotFound
	}

	if quantity == 0 {
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
	} else {
		o.Items[i].Quantity = quantity
	}
	o.Recompute()
	o.UpdatedAt = s.now()

	return o.Clone(), nil
}

func (s *memStore) RemoveItem(_ context.Context, id, itemID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}
	i := o.ItemIndex(itemID)
	if i < 0 {
		return nil, ordererrors.ErrItemNotFound
	}

	o.Items = append(o.Items[:i], o.Items[i+1:]...)
	o.Recompute()
	o.UpdatedAt = s.now()

	return o.Clone(), nil
}

func (s *memStore) Clear(_ context.Context, id int64) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false, nil
	}

	o.Items = []order.LineItem{}
	o.Recompute()
	o.UpdatedAt = s.now()

	return o.Clone(), true, nil
}

func (s *memStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	for i, oid := range s.ids {
		if oid == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	// nextID is untouched: a deleted ID is never reassigned.
	return true, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, newStatus order.Status) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false, ordererrors.ErrOrderNotFound
	}
	if err := s.engine.Validate(o.Status, newStatus); err != nil {
		return nil, false, err
	}
	if o.Status == newStatus {
		return o.Clone(), false, nil
	}

	now := s.now()
	o.Status = newStatus
	o.RecordStatus(newStatus, now)
	o.UpdatedAt = now

	return o.Clone(), true, nil
}
