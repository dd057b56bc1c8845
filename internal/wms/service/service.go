package service

import (
	"time"

	"github.com/bitfantasy/nimo-wms/internal/shared/lock"
	"github.com/bitfantasy/nimo-wms/internal/shared/notify"
	"github.com/bitfantasy/nimo-wms/internal/shared/storage"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher pushes live events to dock screens.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Notifier queues a best-effort notification.
type Notifier interface {
	Dispatch(msg notify.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

type nopNotifier struct{}

func (nopNotifier) Dispatch(notify.Message) {}

// Event types pushed to dock screens
const (
	EventPalletUpdate = "pallet_update"
	EventOrderUpdate  = "order_update"
)

// Options tune the engine.
type Options struct {
	ReceivingTerminalStatus entity.ReceivingStatus
	AllocationRetries       int
	StoreTimeout            time.Duration
	StoreRetryBackoff       time.Duration
	// Now is the clock used for created, shipped and closed timestamps.
	Now func() time.Time
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Store     repository.Store
	Locker    lock.Locker
	Notifier  Notifier
	Objects   storage.ObjectStore
	Publisher Publisher
	Logger    *zap.Logger
}

// Services 服务集合
type Services struct {
	Receiving *ReceivingService
	CrossDock *CrossDockService
	Shipping  *ShippingService
	Inventory *InventoryService
	Billing   *BillingService
	Catalog   *CatalogService
	Documents *DocumentService
}

// engine holds what every service needs.
type engine struct {
	runner    *Runner
	logger    *zap.Logger
	publisher Publisher
	now       func() time.Time

	receiving *receivingMachine
	shipping  *shippingMachine
	pallets   *palletMachine
	manifests *manifestMachine
}

func (e *engine) timestamp() time.Time {
	return e.now().UTC()
}

func newID() string {
	return uuid.New().String()
}

// NewServices 创建服务集合
func NewServices(deps Deps, opts Options) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Objects == nil {
		deps.Objects = storage.NewMemoryStore()
	}
	if opts.ReceivingTerminalStatus == "" {
		opts.ReceivingTerminalStatus = entity.ReceivingStaged
	}
	if opts.AllocationRetries < 1 {
		opts.AllocationRetries = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &engine{
		runner:    NewRunner(deps.Store, opts.StoreTimeout, opts.StoreRetryBackoff, deps.Logger),
		logger:    deps.Logger,
		publisher: deps.Publisher,
		now:       opts.Now,
		receiving: newReceivingMachine(opts.ReceivingTerminalStatus),
		shipping:  newShippingMachine(),
		pallets:   newPalletMachine(),
		manifests: newManifestMachine(),
	}

	receiving := &ReceivingService{engine: e}
	return &Services{
		Receiving: receiving,
		CrossDock: &CrossDockService{engine: e, receiving: receiving, locker: deps.Locker, retries: opts.AllocationRetries},
		Shipping:  &ShippingService{engine: e, notifier: deps.Notifier},
		Inventory: &InventoryService{engine: e},
		Billing:   &BillingService{engine: e},
		Catalog:   &CatalogService{engine: e},
		Documents: &DocumentService{objects: deps.Objects},
	}
}
