package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// CreateManifestRequest 创建装运单请求
type CreateManifestRequest struct {
	Type         entity.ManifestType `json:"type" binding:"required"`
	ContainerNum string              `json:"container_num"`
	SealNum      string              `json:"seal_num"`
}

// ManifestView 装运单详情
type ManifestView struct {
	entity.Manifest
	Pallets   []entity.Pallet `json:"pallets"`
	LoadedQty int             `json:"loaded_qty"`
	Actions   []Action        `json:"actions"`
}

// CreateManifest 创建装运单。集装箱装运单必须带箱号
func (s *ShippingService) CreateManifest(ctx context.Context, req *CreateManifestRequest) (*entity.Manifest, error) {
	m := &entity.Manifest{
		ID:        newID(),
		Type:      req.Type,
		SealNum:   strings.TrimSpace(req.SealNum),
		Status:    entity.ManifestOpen,
		CreatedAt: s.timestamp(),
	}
	switch req.Type {
	case entity.ManifestContainer:
		num := strings.TrimSpace(req.ContainerNum)
		if num == "" {
			return nil, validationf("container_num is required for a container manifest")
		}
		m.ContainerNum = &num
	case entity.ManifestHand:
		if m.SealNum == "" {
			return nil, validationf("seal_num is required for a hand manifest")
		}
	default:
		return nil, validationf("unknown manifest type %q", req.Type)
	}
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.CreateManifest(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("create manifest: %w", err)
	}
	s.logger.Info("Manifest created", zap.String("manifest_id", m.ID), zap.String("type", string(m.Type)))
	return m, nil
}

// ListManifests 装运单列表
func (s *ShippingService) ListManifests(ctx context.Context, filter repository.ManifestFilter) ([]entity.Manifest, error) {
	var out []entity.Manifest
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		var err error
		out, err = st.ListManifests(ctx, filter)
		return err
	})
	if out == nil {
		out = []entity.Manifest{}
	}
	return out, err
}

// GetManifest 装运单详情，含已装托盘
func (s *ShippingService) GetManifest(ctx context.Context, id string) (*ManifestView, error) {
	var view *ManifestView
	err := s.runner.Read(ctx, func(ctx context.Context, st repository.Store) error {
		m, err := st.GetManifest(ctx, id, false)
		if err != nil {
			return notFound("manifest", id, err)
		}
		pallets, err := st.ListPallets(ctx, repository.PalletFilter{ManifestID: id})
		if err != nil {
			return err
		}
		view = &ManifestView{Manifest: *m, Pallets: []entity.Pallet{}, Actions: s.manifests.Actions(m.Status)}
		for _, p := range pallets {
			view.Pallets = append(view.Pallets, p)
			view.LoadedQty += p.Qty
		}
		return nil
	})
	return view, err
}

// CancelManifest 作废装运单，仅限未装托盘的打开状态
func (s *ShippingService) CancelManifest(ctx context.Context, id string) (*entity.Manifest, error) {
	var m *entity.Manifest
	err := s.runner.Tx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		m, err = tx.GetManifest(ctx, id, true)
		if err != nil {
			return notFound("manifest", id, err)
		}
		to, err := s.manifests.Next(m.Status, ActionCancel)
		if err != nil {
			return transitionErr(err)
		}
		loaded, err := tx.ListPallets(ctx, repository.PalletFilter{ManifestID: id, Statuses: []entity.PalletStatus{entity.PalletLoaded, entity.PalletShipped}})
		if err != nil {
			return err
		}
		if len(loaded) > 0 {
			return invalidStatef("manifest %s still carries %d pallets", id, len(loaded))
		}
		from := m.Status
		m.Status = to
		return tx.UpdateManifest(ctx, m, from)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Manifest cancelled", zap.String("manifest_id", id))
	return m, nil
}
