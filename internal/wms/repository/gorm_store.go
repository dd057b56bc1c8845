package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

var forUpdate = clause.Locking{Strength: "UPDATE"}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	return classify(err)
}

func paginate(q *gorm.DB, page, size int) *gorm.DB {
	if size <= 0 {
		return q
	}
	if page < 1 {
		page = 1
	}
	return q.Offset((page - 1) * size).Limit(size)
}

// casResult turns an UPDATE guarded by a status condition into ErrNotFound
// or ErrConflict when it touched nothing.
func (s *GormStore) casResult(ctx context.Context, res *gorm.DB, model interface{}, id string) error {
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := s.conn(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return classify(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// ---------- products ----------

func (s *GormStore) GetProduct(ctx context.Context, itemID string) (*entity.Product, error) {
	var p entity.Product
	if err := s.conn(ctx).First(&p, "item_id = ?", itemID).Error; err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *GormStore) ListProducts(ctx context.Context, activeOnly bool) ([]entity.Product, error) {
	var products []entity.Product
	q := s.conn(ctx).Order("item_id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, classify(err)
	}
	return products, nil
}

func (s *GormStore) UpsertProducts(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "units_per_pallet", "pallet_positions", "active", "updated_at"}),
	}).CreateInBatches(&products, 200).Error
	return classify(err)
}

// ---------- locations ----------

func (s *GormStore) CreateLocation(ctx context.Context, loc *entity.Location) error {
	return classify(s.conn(ctx).Create(loc).Error)
}

func (s *GormStore) GetLocation(ctx context.Context, id string) (*entity.Location, error) {
	var loc entity.Location
	if err := s.conn(ctx).First(&loc, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &loc, nil
}

func (s *GormStore) ListLocations(ctx context.Context) ([]entity.Location, error) {
	var locs []entity.Location
	if err := s.conn(ctx).Order("code ASC").Find(&locs).Error; err != nil {
		return nil, classify(err)
	}
	return locs, nil
}

// ---------- receiving ----------

func (s *GormStore) CreateReceivingOrder(ctx context.Context, order *entity.ReceivingOrder) error {
	// Create with associations writes the lines in the same statement batch
	return classify(s.conn(ctx).Create(order).Error)
}

func (s *GormStore) GetReceivingOrder(ctx context.Context, id string) (*entity.ReceivingOrder, error) {
	var order entity.ReceivingOrder
	err := s.conn(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("item_id ASC, id ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

func (s *GormStore) ListReceivingOrders(ctx context.Context, filter OrderFilter) ([]entity.ReceivingOrder, int64, error) {
	var orders []entity.ReceivingOrder
	var total int64
	q := s.conn(ctx).Model(&entity.ReceivingOrder{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := paginate(q, filter.Page, filter.Size).
		Preload("Lines").
		Order("created_at DESC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return orders, total, nil
}

func (s *GormStore) GetReceivingLine(ctx context.Context, id string, lock bool) (*entity.ReceivingOrderLine, error) {
	var line entity.ReceivingOrderLine
	q := s.conn(ctx)
	if lock {
		q = q.Clauses(forUpdate)
	}
	if err := q.First(&line, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &line, nil
}

func (s *GormStore) UpdateReceivingStatus(ctx context.Context, id string, from, to entity.ReceivingStatus, at time.Time) error {
	res := s.conn(ctx).Model(&entity.ReceivingOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	return s.casResult(ctx, res, &entity.ReceivingOrder{}, id)
}

// ---------- shipping ----------

func (s *GormStore) CreateShippingOrder(ctx context.Context, order *entity.ShippingOrder) error {
	return classify(s.conn(ctx).Create(order).Error)
}

func (s *GormStore) GetShippingOrder(ctx context.Context, id string, lock bool) (*entity.ShippingOrder, error) {
	var order entity.ShippingOrder
	q := s.conn(ctx)
	if lock {
		q = q.Clauses(forUpdate)
	}
	if err := q.First(&order, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	lq := s.conn(ctx).Where("shipping_order_id = ?", id).Order("item_id ASC, id ASC")
	if lock {
		lq = lq.Clauses(forUpdate)
	}
	if err := lq.Find(&order.Lines).Error; err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

func (s *GormStore) ListShippingOrders(ctx context.Context, filter OrderFilter) ([]entity.ShippingOrder, int64, error) {
	var orders []entity.ShippingOrder
	var total int64
	q := s.conn(ctx).Model(&entity.ShippingOrder{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := paginate(q, filter.Page, filter.Size).
		Preload("Lines").
		Order("created_at DESC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return orders, total, nil
}

func (s *GormStore) UpdateShippingOrder(ctx context.Context, order *entity.ShippingOrder, from entity.ShippingStatus) error {
	res := s.conn(ctx).Model(&entity.ShippingOrder{}).
		Where("id = ? AND status = ?", order.ID, from).
		Updates(map[string]interface{}{
			"status":          order.Status,
			"manifest_id":     order.ManifestID,
			"signed_form_ref": order.SignedFormRef,
			"shipped_at":      order.ShippedAt,
			"updated_at":      order.UpdatedAt,
		})
	return s.casResult(ctx, res, &entity.ShippingOrder{}, order.ID)
}

func (s *GormStore) ListDemand(ctx context.Context, itemID string, statuses []entity.ShippingStatus, lock bool) ([]entity.ShippingOrder, error) {
	var lines []entity.ShippingOrderLine
	q := s.conn(ctx).
		Joins("JOIN shipping_orders so ON so.id = shipping_order_lines.shipping_order_id").
		Where("shipping_order_lines.item_id = ? AND so.status IN ?", itemID, statuses).
		Order("so.created_at ASC, so.id ASC")
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "shipping_order_lines"}})
	}
	if err := q.Find(&lines).Error; err != nil {
		return nil, classify(err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if !slices.Contains(ids, l.ShippingOrderID) {
			ids = append(ids, l.ShippingOrderID)
		}
	}
	var orders []entity.ShippingOrder
	if err := s.conn(ctx).Preload("Lines").Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, classify(err)
	}
	byID := make(map[string]entity.ShippingOrder, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	out := make([]entity.ShippingOrder, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// ---------- pallets ----------

func (s *GormStore) CreatePallet(ctx context.Context, pallet *entity.Pallet) error {
	return classify(s.conn(ctx).Create(pallet).Error)
}

func (s *GormStore) GetPallet(ctx context.Context, id string, lock bool) (*entity.Pallet, error) {
	var p entity.Pallet
	q := s.conn(ctx)
	if lock {
		q = q.Clauses(forUpdate)
	}
	if err := q.First(&p, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *GormStore) ListPallets(ctx context.Context, f PalletFilter) ([]entity.Pallet, error) {
	q := s.conn(ctx).Model(&entity.Pallet{})
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.ReceivingOrderID != "" {
		q = q.Where("receiving_order_id = ?", f.ReceivingOrderID)
	}
	if f.ShippingOrderID != "" {
		q = q.Where("shipping_order_id = ?", f.ShippingOrderID)
	}
	if len(f.ShippingOrderIDs) > 0 {
		q = q.Where("shipping_order_id IN ?", f.ShippingOrderIDs)
	}
	if f.ManifestID != "" {
		q = q.Where("manifest_id = ?", f.ManifestID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.CrossDock != nil {
		q = q.Where("is_cross_dock = ?", *f.CrossDock)
	}
	if f.Unassigned {
		q = q.Where("shipping_order_id IS NULL")
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	if f.ShippedFrom != nil {
		q = q.Where("shipped_at >= ?", *f.ShippedFrom)
	}
	if f.ShippedTo != nil {
		q = q.Where("shipped_at <= ?", *f.ShippedTo)
	}
	var pallets []entity.Pallet
	if err := q.Order("created_at ASC, id ASC").Find(&pallets).Error; err != nil {
		return nil, classify(err)
	}
	return pallets, nil
}

func (s *GormStore) UpdatePallet(ctx context.Context, p *entity.Pallet, from entity.PalletStatus) error {
	res := s.conn(ctx).Model(&entity.Pallet{}).
		Where("id = ? AND status = ?", p.ID, from).
		Updates(map[string]interface{}{
			"status":            p.Status,
			"shipping_order_id": p.ShippingOrderID,
			"location_id":       p.LocationID,
			"manifest_id":       p.ManifestID,
			"shipped_at":        p.ShippedAt,
			"is_cross_dock":     p.IsCrossDock,
		})
	return s.casResult(ctx, res, &entity.Pallet{}, p.ID)
}

func (s *GormStore) DeletePallet(ctx context.Context, id string, from entity.PalletStatus) error {
	res := s.conn(ctx).Where("id = ? AND status = ?", id, from).Delete(&entity.Pallet{})
	return s.casResult(ctx, res, &entity.Pallet{}, id)
}

// ---------- manifests ----------

func (s *GormStore) CreateManifest(ctx context.Context, m *entity.Manifest) error {
	return classify(s.conn(ctx).Create(m).Error)
}

func (s *GormStore) GetManifest(ctx context.Context, id string, lock bool) (*entity.Manifest, error) {
	var m entity.Manifest
	q := s.conn(ctx)
	if lock {
		q = q.Clauses(forUpdate)
	}
	if err := q.First(&m, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

func (s *GormStore) ListManifests(ctx context.Context, f ManifestFilter) ([]entity.Manifest, error) {
	q := s.conn(ctx).Model(&entity.Manifest{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var ms []entity.Manifest
	if err := q.Order("created_at ASC, id ASC").Find(&ms).Error; err != nil {
		return nil, classify(err)
	}
	return ms, nil
}

func (s *GormStore) UpdateManifest(ctx context.Context, m *entity.Manifest, from entity.ManifestStatus) error {
	res := s.conn(ctx).Model(&entity.Manifest{}).
		Where("id = ? AND status = ?", m.ID, from).
		Updates(map[string]interface{}{
			"status":        m.Status,
			"container_num": m.ContainerNum,
			"seal_num":      m.SealNum,
			"closed_at":     m.ClosedAt,
		})
	return s.casResult(ctx, res, &entity.Manifest{}, m.ID)
}

// ---------- maintenance ----------

func (s *GormStore) DeleteAll(ctx context.Context, table string) error {
	if !slices.Contains(entity.Tables, table) {
		return fmt.Errorf("delete all: unknown table %q", table)
	}
	db := s.conn(ctx)
	savepoint := "reset_" + table
	if err := db.SavePoint(savepoint).Error; err != nil {
		return classify(err)
	}
	err := classify(db.Exec("DELETE FROM ?", clause.Table{Name: table}).Error)
	if errors.Is(err, ErrTableNotFound) {
		// the failed statement aborted the transaction up to the savepoint
		if rbErr := db.RollbackTo(savepoint).Error; rbErr != nil {
			return classify(rbErr)
		}
	}
	return err
}
