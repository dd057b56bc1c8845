// Package memory is an in-process Store. Transactions run on a snapshot
// under a single mutex and replace the committed state only on success, so
// every transaction is serializable.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
)

// FaultFunc is consulted before every store operation; a non-nil result is
// returned in place of running it.
type FaultFunc func(op string) error

type state struct {
	products   map[string]entity.Product
	locations  map[string]entity.Location
	recvOrders map[string]entity.ReceivingOrder
	recvLines  map[string]entity.ReceivingOrderLine
	shipOrders map[string]entity.ShippingOrder
	shipLines  map[string]entity.ShippingOrderLine
	pallets    map[string]entity.Pallet
	manifests  map[string]entity.Manifest
	dropped    map[string]bool
}

func newState() *state {
	return &state{
		products:   map[string]entity.Product{},
		locations:  map[string]entity.Location{},
		recvOrders: map[string]entity.ReceivingOrder{},
		recvLines:  map[string]entity.ReceivingOrderLine{},
		shipOrders: map[string]entity.ShippingOrder{},
		shipLines:  map[string]entity.ShippingOrderLine{},
		pallets:    map[string]entity.Pallet{},
		manifests:  map[string]entity.Manifest{},
		dropped:    map[string]bool{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[string]entity.Product, len(s.products)),
		locations:  make(map[string]entity.Location, len(s.locations)),
		recvOrders: make(map[string]entity.ReceivingOrder, len(s.recvOrders)),
		recvLines:  make(map[string]entity.ReceivingOrderLine, len(s.recvLines)),
		shipOrders: make(map[string]entity.ShippingOrder, len(s.shipOrders)),
		shipLines:  make(map[string]entity.ShippingOrderLine, len(s.shipLines)),
		pallets:    make(map[string]entity.Pallet, len(s.pallets)),
		manifests:  make(map[string]entity.Manifest, len(s.manifests)),
		dropped:    make(map[string]bool, len(s.dropped)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.recvOrders {
		c.recvOrders[k] = v
	}
	for k, v := range s.recvLines {
		c.recvLines[k] = v
	}
	for k, v := range s.shipOrders {
		c.shipOrders[k] = v
	}
	for k, v := range s.shipLines {
		c.shipLines[k] = v
	}
	for k, v := range s.pallets {
		c.pallets[k] = v
	}
	for k, v := range s.manifests {
		c.manifests[k] = v
	}
	for k, v := range s.dropped {
		c.dropped[k] = v
	}
	return c
}

type shared struct {
	mu    sync.Mutex
	state *state
	fault FaultFunc
	now   func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	sh   *shared
	tx   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{sh: &shared{state: newState(), now: time.Now}}
}

// SetFault installs f for subsequent operations; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.sh.mu.Lock()
	s.sh.fault = f
	s.sh.mu.Unlock()
}

// DropTable makes the named table behave as missing.
func (s *Store) DropTable(table string) {
	s.sh.mu.Lock()
	s.sh.state.dropped[table] = true
	s.sh.mu.Unlock()
}

// run executes op against the visible state, taking the mutex outside transactions.
func (s *Store) run(ctx context.Context, op string, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.mu.Lock()
		defer s.sh.mu.Unlock()
	}
	if s.sh.fault != nil {
		if err := s.sh.fault(op); err != nil {
			return err
		}
	}
	st := s.sh.state
	if s.inTx {
		st = s.tx
	}
	return fn(st)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()

	tx := &Store{sh: s.sh, tx: s.sh.state.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sh.state = tx.tx
	return nil
}

func missing(st *state, table string) error {
	if st.dropped[table] {
		return fmt.Errorf("%w: %s", repository.ErrTableNotFound, table)
	}
	return nil
}

func clonePallet(p entity.Pallet) entity.Pallet {
	p.ReceivingOrderID = cloneStr(p.ReceivingOrderID)
	p.ShippingOrderID = cloneStr(p.ShippingOrderID)
	p.LocationID = cloneStr(p.LocationID)
	p.ManifestID = cloneStr(p.ManifestID)
	p.ShippedAt = cloneTime(p.ShippedAt)
	return p
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func strEq(p *string, v string) bool {
	return p != nil && *p == v
}

func pageOf[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ---------- products ----------

func (s *Store) GetProduct(ctx context.Context, itemID string) (*entity.Product, error) {
	var out *entity.Product
	err := s.run(ctx, "GetProduct", func(st *state) error {
		if err := missing(st, "products"); err != nil {
			return err
		}
		p, ok := st.products[itemID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]entity.Product, error) {
	var out []entity.Product
	err := s.run(ctx, "ListProducts", func(st *state) error {
		for _, p := range st.products {
			if activeOnly && !p.Active {
				continue
			}
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
		return nil
	})
	return out, err
}

func (s *Store) UpsertProducts(ctx context.Context, products []entity.Product) error {
	return s.run(ctx, "UpsertProducts", func(st *state) error {
		if err := missing(st, "products"); err != nil {
			return err
		}
		now := s.sh.now()
		for _, p := range products {
			if old, ok := st.products[p.ItemID]; ok {
				p.CreatedAt = old.CreatedAt
			} else if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			p.UpdatedAt = now
			st.products[p.ItemID] = p
		}
		return nil
	})
}

// ---------- locations ----------

func (s *Store) CreateLocation(ctx context.Context, loc *entity.Location) error {
	return s.run(ctx, "CreateLocation", func(st *state) error {
		if _, ok := st.locations[loc.ID]; ok {
			return fmt.Errorf("%w: location %s exists", repository.ErrConflict, loc.ID)
		}
		for _, l := range st.locations {
			if l.Code == loc.Code {
				return fmt.Errorf("%w: location code %s exists", repository.ErrConflict, loc.Code)
			}
		}
		if loc.CreatedAt.IsZero() {
			loc.CreatedAt = s.sh.now()
		}
		st.locations[loc.ID] = *loc
		return nil
	})
}

func (s *Store) GetLocation(ctx context.Context, id string) (*entity.Location, error) {
	var out *entity.Location
	err := s.run(ctx, "GetLocation", func(st *state) error {
		l, ok := st.locations[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *Store) ListLocations(ctx context.Context) ([]entity.Location, error) {
	var out []entity.Location
	err := s.run(ctx, "ListLocations", func(st *state) error {
		for _, l := range st.locations {
			out = append(out, l)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
		return nil
	})
	return out, err
}

// ---------- receiving ----------

func (s *Store) recvLinesOf(st *state, orderID string) []entity.ReceivingOrderLine {
	var lines []entity.ReceivingOrderLine
	for _, l := range st.recvLines {
		if l.ReceivingOrderID == orderID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ItemID != lines[j].ItemID {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].ID < lines[j].ID
	})
	return lines
}

func (s *Store) CreateReceivingOrder(ctx context.Context, order *entity.ReceivingOrder) error {
	return s.run(ctx, "CreateReceivingOrder", func(st *state) error {
		if err := missing(st, "receiving_orders"); err != nil {
			return err
		}
		if _, ok := st.recvOrders[order.ID]; ok {
			return fmt.Errorf("%w: receiving order %s exists", repository.ErrConflict, order.ID)
		}
		now := s.sh.now()
		if order.CreatedAt.IsZero() {
			order.CreatedAt = now
		}
		order.UpdatedAt = order.CreatedAt
		head := *order
		head.Lines = nil
		st.recvOrders[order.ID] = head
		for i := range order.Lines {
			order.Lines[i].ReceivingOrderID = order.ID
			st.recvLines[order.Lines[i].ID] = order.Lines[i]
		}
		return nil
	})
}

func (s *Store) GetReceivingOrder(ctx context.Context, id string) (*entity.ReceivingOrder, error) {
	var out *entity.ReceivingOrder
	err := s.run(ctx, "GetReceivingOrder", func(st *state) error {
		o, ok := st.recvOrders[id]
		if !ok {
			return repository.ErrNotFound
		}
		o.Lines = s.recvLinesOf(st, id)
		out = &o
		return nil
	})
	return out, err
}

func (s *Store) ListReceivingOrders(ctx context.Context, f repository.OrderFilter) ([]entity.ReceivingOrder, int64, error) {
	var out []entity.ReceivingOrder
	var total int64
	err := s.run(ctx, "ListReceivingOrders", func(st *state) error {
		var all []entity.ReceivingOrder
		for _, o := range st.recvOrders {
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, string(o.Status)) {
				continue
			}
			o.Lines = s.recvLinesOf(st, o.ID)
			all = append(all, o)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID < all[j].ID
		})
		total = int64(len(all))
		out = pageOf(all, f.Page, f.Size)
		return nil
	})
	return out, total, err
}

func (s *Store) GetReceivingLine(ctx context.Context, id string, _ bool) (*entity.ReceivingOrderLine, error) {
	var out *entity.ReceivingOrderLine
	err := s.run(ctx, "GetReceivingLine", func(st *state) error {
		l, ok := st.recvLines[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *Store) UpdateReceivingStatus(ctx context.Context, id string, from, to entity.ReceivingStatus, at time.Time) error {
	return s.run(ctx, "UpdateReceivingStatus", func(st *state) error {
		o, ok := st.recvOrders[id]
		if !ok {
			return repository.ErrNotFound
		}
		if o.Status != from {
			return fmt.Errorf("%w: receiving order %s is %s", repository.ErrConflict, id, o.Status)
		}
		o.Status = to
		o.UpdatedAt = at
		st.recvOrders[id] = o
		return nil
	})
}

// ---------- shipping ----------

func (s *Store) shipLinesOf(st *state, orderID string) []entity.ShippingOrderLine {
	var lines []entity.ShippingOrderLine
	for _, l := range st.shipLines {
		if l.ShippingOrderID == orderID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ItemID != lines[j].ItemID {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].ID < lines[j].ID
	})
	return lines
}

func cloneShipping(o entity.ShippingOrder) entity.ShippingOrder {
	o.ManifestID = cloneStr(o.ManifestID)
	o.ShippedAt = cloneTime(o.ShippedAt)
	return o
}

func (s *Store) CreateShippingOrder(ctx context.Context, order *entity.ShippingOrder) error {
	return s.run(ctx, "CreateShippingOrder", func(st *state) error {
		if err := missing(st, "shipping_orders"); err != nil {
			return err
		}
		if _, ok := st.shipOrders[order.ID]; ok {
			return fmt.Errorf("%w: shipping order %s exists", repository.ErrConflict, order.ID)
		}
		if order.CreatedAt.IsZero() {
			order.CreatedAt = s.sh.now()
		}
		order.UpdatedAt = order.CreatedAt
		head := cloneShipping(*order)
		head.Lines = nil
		st.shipOrders[order.ID] = head
		for i := range order.Lines {
			order.Lines[i].ShippingOrderID = order.ID
			st.shipLines[order.Lines[i].ID] = order.Lines[i]
		}
		return nil
	})
}

func (s *Store) GetShippingOrder(ctx context.Context, id string, _ bool) (*entity.ShippingOrder, error) {
	var out *entity.ShippingOrder
	err := s.run(ctx, "GetShippingOrder", func(st *state) error {
		o, ok := st.shipOrders[id]
		if !ok {
			return repository.ErrNotFound
		}
		o = cloneShipping(o)
		o.Lines = s.shipLinesOf(st, id)
		out = &o
		return nil
	})
	return out, err
}

func (s *Store) ListShippingOrders(ctx context.Context, f repository.OrderFilter) ([]entity.ShippingOrder, int64, error) {
	var out []entity.ShippingOrder
	var total int64
	err := s.run(ctx, "ListShippingOrders", func(st *state) error {
		var all []entity.ShippingOrder
		for _, o := range st.shipOrders {
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, string(o.Status)) {
				continue
			}
			o = cloneShipping(o)
			o.Lines = s.shipLinesOf(st, o.ID)
			all = append(all, o)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID < all[j].ID
		})
		total = int64(len(all))
		out = pageOf(all, f.Page, f.Size)
		return nil
	})
	return out, total, err
}

func (s *Store) UpdateShippingOrder(ctx context.Context, order *entity.ShippingOrder, from entity.ShippingStatus) error {
	return s.run(ctx, "UpdateShippingOrder", func(st *state) error {
		o, ok := st.shipOrders[order.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if o.Status != from {
			return fmt.Errorf("%w: shipping order %s is %s", repository.ErrConflict, order.ID, o.Status)
		}
		o.Status = order.Status
		o.ManifestID = cloneStr(order.ManifestID)
		o.SignedFormRef = order.SignedFormRef
		o.ShippedAt = cloneTime(order.ShippedAt)
		o.UpdatedAt = order.UpdatedAt
		st.shipOrders[order.ID] = o
		return nil
	})
}

func (s *Store) ListDemand(ctx context.Context, itemID string, statuses []entity.ShippingStatus, _ bool) ([]entity.ShippingOrder, error) {
	var out []entity.ShippingOrder
	err := s.run(ctx, "ListDemand", func(st *state) error {
		seen := map[string]bool{}
		for _, l := range st.shipLines {
			if l.ItemID != itemID || seen[l.ShippingOrderID] {
				continue
			}
			o, ok := st.shipOrders[l.ShippingOrderID]
			if !ok || !slices.Contains(statuses, o.Status) {
				continue
			}
			seen[o.ID] = true
			o = cloneShipping(o)
			o.Lines = s.shipLinesOf(st, o.ID)
			out = append(out, o)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

// ---------- pallets ----------

func (s *Store) CreatePallet(ctx context.Context, p *entity.Pallet) error {
	return s.run(ctx, "CreatePallet", func(st *state) error {
		if err := missing(st, "pallets"); err != nil {
			return err
		}
		if _, ok := st.pallets[p.ID]; ok {
			return fmt.Errorf("%w: pallet %s exists", repository.ErrConflict, p.ID)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.sh.now()
		}
		st.pallets[p.ID] = clonePallet(*p)
		return nil
	})
}

func (s *Store) GetPallet(ctx context.Context, id string, _ bool) (*entity.Pallet, error) {
	var out *entity.Pallet
	err := s.run(ctx, "GetPallet", func(st *state) error {
		p, ok := st.pallets[id]
		if !ok {
			return repository.ErrNotFound
		}
		p = clonePallet(p)
		out = &p
		return nil
	})
	return out, err
}

func matchPallet(p *entity.Pallet, f *repository.PalletFilter) bool {
	switch {
	case f.ItemID != "" && p.ItemID != f.ItemID:
		return false
	case f.ReceivingOrderID != "" && !strEq(p.ReceivingOrderID, f.ReceivingOrderID):
		return false
	case f.ShippingOrderID != "" && !strEq(p.ShippingOrderID, f.ShippingOrderID):
		return false
	case len(f.ShippingOrderIDs) > 0 && (p.ShippingOrderID == nil || !slices.Contains(f.ShippingOrderIDs, *p.ShippingOrderID)):
		return false
	case f.ManifestID != "" && !strEq(p.ManifestID, f.ManifestID):
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status):
		return false
	case f.CrossDock != nil && p.IsCrossDock != *f.CrossDock:
		return false
	case f.Unassigned && p.ShippingOrderID != nil:
		return false
	case f.CreatedFrom != nil && p.CreatedAt.Before(*f.CreatedFrom):
		return false
	case f.CreatedTo != nil && p.CreatedAt.After(*f.CreatedTo):
		return false
	case f.ShippedFrom != nil && (p.ShippedAt == nil || p.ShippedAt.Before(*f.ShippedFrom)):
		return false
	case f.ShippedTo != nil && (p.ShippedAt == nil || p.ShippedAt.After(*f.ShippedTo)):
		return false
	}
	return true
}

func (s *Store) ListPallets(ctx context.Context, f repository.PalletFilter) ([]entity.Pallet, error) {
	var out []entity.Pallet
	err := s.run(ctx, "ListPallets", func(st *state) error {
		if err := missing(st, "pallets"); err != nil {
			return err
		}
		for _, p := range st.pallets {
			if matchPallet(&p, &f) {
				out = append(out, clonePallet(p))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (s *Store) UpdatePallet(ctx context.Context, p *entity.Pallet, from entity.PalletStatus) error {
	return s.run(ctx, "UpdatePallet", func(st *state) error {
		cur, ok := st.pallets[p.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if cur.Status != from {
			return fmt.Errorf("%w: pallet %s is %s", repository.ErrConflict, p.ID, cur.Status)
		}
		cur.Status = p.Status
		cur.ShippingOrderID = cloneStr(p.ShippingOrderID)
		cur.LocationID = cloneStr(p.LocationID)
		cur.ManifestID = cloneStr(p.ManifestID)
		cur.ShippedAt = cloneTime(p.ShippedAt)
		cur.IsCrossDock = p.IsCrossDock
		st.pallets[p.ID] = cur
		return nil
	})
}

func (s *Store) DeletePallet(ctx context.Context, id string, from entity.PalletStatus) error {
	return s.run(ctx, "DeletePallet", func(st *state) error {
		cur, ok := st.pallets[id]
		if !ok {
			return repository.ErrNotFound
		}
		if cur.Status != from {
			return fmt.Errorf("%w: pallet %s is %s", repository.ErrConflict, id, cur.Status)
		}
		delete(st.pallets, id)
		return nil
	})
}

// ---------- manifests ----------

func cloneManifest(m entity.Manifest) entity.Manifest {
	m.ContainerNum = cloneStr(m.ContainerNum)
	m.ClosedAt = cloneTime(m.ClosedAt)
	return m
}

func (s *Store) CreateManifest(ctx context.Context, m *entity.Manifest) error {
	return s.run(ctx, "CreateManifest", func(st *state) error {
		if err := missing(st, "manifests"); err != nil {
			return err
		}
		if _, ok := st.manifests[m.ID]; ok {
			return fmt.Errorf("%w: manifest %s exists", repository.ErrConflict, m.ID)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.sh.now()
		}
		st.manifests[m.ID] = cloneManifest(*m)
		return nil
	})
}

func (s *Store) GetManifest(ctx context.Context, id string, _ bool) (*entity.Manifest, error) {
	var out *entity.Manifest
	err := s.run(ctx, "GetManifest", func(st *state) error {
		m, ok := st.manifests[id]
		if !ok {
			return repository.ErrNotFound
		}
		m = cloneManifest(m)
		out = &m
		return nil
	})
	return out, err
}

func (s *Store) ListManifests(ctx context.Context, f repository.ManifestFilter) ([]entity.Manifest, error) {
	var out []entity.Manifest
	err := s.run(ctx, "ListManifests", func(st *state) error {
		for _, m := range st.manifests {
			if f.Type != "" && m.Type != f.Type {
				continue
			}
			if f.Status != "" && m.Status != f.Status {
				continue
			}
			out = append(out, cloneManifest(m))
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (s *Store) UpdateManifest(ctx context.Context, m *entity.Manifest, from entity.ManifestStatus) error {
	return s.run(ctx, "UpdateManifest", func(st *state) error {
		cur, ok := st.manifests[m.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if cur.Status != from {
			return fmt.Errorf("%w: manifest %s is %s", repository.ErrConflict, m.ID, cur.Status)
		}
		cur.Status = m.Status
		cur.ContainerNum = cloneStr(m.ContainerNum)
		cur.SealNum = m.SealNum
		cur.ClosedAt = cloneTime(m.ClosedAt)
		st.manifests[m.ID] = cur
		return nil
	})
}

// ---------- maintenance ----------

func (s *Store) DeleteAll(ctx context.Context, table string) error {
	return s.run(ctx, "DeleteAll:"+table, func(st *state) error {
		if err := missing(st, table); err != nil {
			return err
		}
		switch table {
		case "pallets":
			st.pallets = map[string]entity.Pallet{}
		case "manifests":
			st.manifests = map[string]entity.Manifest{}
		case "shipping_order_lines":
			st.shipLines = map[string]entity.ShippingOrderLine{}
		case "shipping_orders":
			st.shipOrders = map[string]entity.ShippingOrder{}
		case "receiving_order_lines":
			st.recvLines = map[string]entity.ReceivingOrderLine{}
		case "receiving_orders":
			st.recvOrders = map[string]entity.ReceivingOrder{}
		case "products":
			st.products = map[string]entity.Product{}
		case "locations":
			st.locations = map[string]entity.Location{}
		default:
			return fmt.Errorf("delete all: unknown table %q", table)
		}
		return nil
	})
}
