package service

import (
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/statemachine"
)

// Action names one step of a lifecycle.
type Action string

const (
	ActionSelectForUnloading Action = "select_for_unloading"
	ActionTally              Action = "tally"
	ActionFinishTally        Action = "finish_tally"

	ActionReserve       Action = "reserve"
	ActionPick          Action = "pick"
	ActionStartLoading  Action = "start_loading"
	ActionSelectTarget  Action = "select_load_target"
	ActionLoad          Action = "load"
	ActionFinishLoading Action = "finish_loading"
	ActionClose         Action = "close"

	ActionPutAway         Action = "put_away"
	ActionWriteOff        Action = "write_off"
	ActionUnload          Action = "unload"
	ActionUnloadCrossDock Action = "unload_cross_dock"
	ActionShip            Action = "ship"

	ActionAssign Action = "assign"
	ActionCancel Action = "cancel"
)

type (
	receivingMachine = statemachine.Machine[entity.ReceivingStatus, Action]
	shippingMachine  = statemachine.Machine[entity.ShippingStatus, Action]
	palletMachine    = statemachine.Machine[entity.PalletStatus, Action]
	manifestMachine  = statemachine.Machine[entity.ManifestStatus, Action]
)

// newReceivingMachine builds the receiving lifecycle ending in terminal,
// which is Staged or Received depending on deployment.
func newReceivingMachine(terminal entity.ReceivingStatus) *receivingMachine {
	type t = statemachine.Transition[entity.ReceivingStatus, Action]
	return statemachine.New("receiving_order",
		t{From: entity.ReceivingPending, Action: ActionSelectForUnloading, To: entity.ReceivingUnloading},
		t{From: entity.ReceivingUnloading, Action: ActionTally, To: entity.ReceivingUnloading},
		t{From: entity.ReceivingUnloading, Action: ActionFinishTally, To: terminal},
	)
}

func newShippingMachine() *shippingMachine {
	type t = statemachine.Transition[entity.ShippingStatus, Action]
	return statemachine.New("shipping_order",
		t{From: entity.ShippingPending, Action: ActionReserve, To: entity.ShippingPending},
		t{From: entity.ShippingPicking, Action: ActionReserve, To: entity.ShippingPicking},
		t{From: entity.ShippingPending, Action: ActionPick, To: entity.ShippingPicking},
		t{From: entity.ShippingPicking, Action: ActionPick, To: entity.ShippingPicking},
		t{From: entity.ShippingPending, Action: ActionStartLoading, To: entity.ShippingLoading},
		t{From: entity.ShippingPicking, Action: ActionStartLoading, To: entity.ShippingLoading},
		t{From: entity.ShippingLoading, Action: ActionSelectTarget, To: entity.ShippingLoading},
		t{From: entity.ShippingLoading, Action: ActionLoad, To: entity.ShippingLoading},
		t{From: entity.ShippingLoading, Action: ActionFinishLoading, To: entity.ShippingCompleted},
		t{From: entity.ShippingCompleted, Action: ActionClose, To: entity.ShippingShipped},
	)
}

func newPalletMachine() *palletMachine {
	type t = statemachine.Transition[entity.PalletStatus, Action]
	return statemachine.New("pallet",
		t{From: entity.PalletReceived, Action: ActionPutAway, To: entity.PalletStored},
		t{From: entity.PalletReceived, Action: ActionWriteOff, To: entity.PalletWriteOff},
		t{From: entity.PalletStored, Action: ActionWriteOff, To: entity.PalletWriteOff},
		t{From: entity.PalletStored, Action: ActionPick, To: entity.PalletStored},
		t{From: entity.PalletReceived, Action: ActionPick, To: entity.PalletReceived},
		t{From: entity.PalletStored, Action: ActionLoad, To: entity.PalletLoaded},
		t{From: entity.PalletReceived, Action: ActionLoad, To: entity.PalletLoaded},
		t{From: entity.PalletLoaded, Action: ActionUnload, To: entity.PalletStored},
		t{From: entity.PalletLoaded, Action: ActionUnloadCrossDock, To: entity.PalletReceived},
		t{From: entity.PalletLoaded, Action: ActionShip, To: entity.PalletShipped},
	)
}

func newManifestMachine() *manifestMachine {
	type t = statemachine.Transition[entity.ManifestStatus, Action]
	return statemachine.New("manifest",
		t{From: entity.ManifestOpen, Action: ActionAssign, To: entity.ManifestOpen},
		t{From: entity.ManifestOpen, Action: ActionClose, To: entity.ManifestClosed},
		t{From: entity.ManifestOpen, Action: ActionCancel, To: entity.ManifestCancelled},
	)
}
