package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
)

// 错误定义
var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTableNotFound    = errors.New("table not found")
)

// PalletFilter narrows ListPallets. Zero fields do not filter. Time bounds are inclusive.
type PalletFilter struct {
	ItemID           string
	ReceivingOrderID string
	ShippingOrderID  string
	ShippingOrderIDs []string
	ManifestID       string
	Statuses         []entity.PalletStatus
	CrossDock        *bool
	Unassigned       bool
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	ShippedFrom      *time.Time
	ShippedTo        *time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Statuses []string
	Page     int
	Size     int
}

// ManifestFilter narrows ListManifests.
type ManifestFilter struct {
	Type   entity.ManifestType
	Status entity.ManifestStatus
}

// Store is the document store the engine runs against. A Store obtained
// inside WithTx sees only its own transaction; calling WithTx on it again
// joins the same transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	GetProduct(ctx context.Context, itemID string) (*entity.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]entity.Product, error)
	UpsertProducts(ctx context.Context, products []entity.Product) error

	CreateLocation(ctx context.Context, loc *entity.Location) error
	GetLocation(ctx context.Context, id string) (*entity.Location, error)
	ListLocations(ctx context.Context) ([]entity.Location, error)

	CreateReceivingOrder(ctx context.Context, order *entity.ReceivingOrder) error
	GetReceivingOrder(ctx context.Context, id string) (*entity.ReceivingOrder, error)
	ListReceivingOrders(ctx context.Context, filter OrderFilter) ([]entity.ReceivingOrder, int64, error)
	// GetReceivingLine with forUpdate holds a row lock until the transaction ends.
	GetReceivingLine(ctx context.Context, id string, forUpdate bool) (*entity.ReceivingOrderLine, error)
	// UpdateReceivingStatus stamps updated_at with at and returns ErrConflict
	// when the order is no longer in from.
	UpdateReceivingStatus(ctx context.Context, id string, from, to entity.ReceivingStatus, at time.Time) error

	CreateShippingOrder(ctx context.Context, order *entity.ShippingOrder) error
	GetShippingOrder(ctx context.Context, id string, forUpdate bool) (*entity.ShippingOrder, error)
	ListShippingOrders(ctx context.Context, filter OrderFilter) ([]entity.ShippingOrder, int64, error)
	// UpdateShippingOrder saves status, manifest, signed form, shipped time and
	// order.UpdatedAt only while the stored status still equals from.
	UpdateShippingOrder(ctx context.Context, order *entity.ShippingOrder, from entity.ShippingStatus) error
	// ListDemand returns orders in statuses that have a line for itemID,
	// oldest first with ties broken by id. forUpdate locks those lines.
	ListDemand(ctx context.Context, itemID string, statuses []entity.ShippingStatus, forUpdate bool) ([]entity.ShippingOrder, error)

	CreatePallet(ctx context.Context, pallet *entity.Pallet) error
	GetPallet(ctx context.Context, id string, forUpdate bool) (*entity.Pallet, error)
	ListPallets(ctx context.Context, filter PalletFilter) ([]entity.Pallet, error)
	// UpdatePallet saves the mutable pallet fields while its status still equals from.
	UpdatePallet(ctx context.Context, pallet *entity.Pallet, from entity.PalletStatus) error
	DeletePallet(ctx context.Context, id string, from entity.PalletStatus) error

	CreateManifest(ctx context.Context, m *entity.Manifest) error
	GetManifest(ctx context.Context, id string, forUpdate bool) (*entity.Manifest, error)
	ListManifests(ctx context.Context, filter ManifestFilter) ([]entity.Manifest, error)
	UpdateManifest(ctx context.Context, m *entity.Manifest, from entity.ManifestStatus) error

	// DeleteAll empties table. A missing table yields ErrTableNotFound and
	// leaves the surrounding transaction usable.
	DeleteAll(ctx context.Context, table string) error
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
