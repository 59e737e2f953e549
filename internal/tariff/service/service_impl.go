package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/tirtabill/tirtabill/internal/clock"
	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  tariffdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  tariffdomain.Repository
	clock clock.Clock
}

func New(p Params) tariffdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tariff.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req tariffdomain.CreateRequest) (*tariffdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tariffdomain.ErrInvalidName
	}
	class := strings.TrimSpace(req.CustomerClass)
	if !customerdomain.ValidClass(class) {
		return nil, tariffdomain.ErrInvalidClass
	}

	fixedCharge := decimal.Zero
	if strings.TrimSpace(req.FixedCharge) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.FixedCharge))
		if err != nil || parsed.IsNegative() {
			return nil, tariffdomain.ErrInvalidCharge
		}
		fixedCharge = parsed
	}

	now := s.clock.Now()
	effectiveFrom := now
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	tariff := &tariffdomain.Tariff{
		ID:            s.genID.Generate(),
		Name:          name,
		CustomerClass: class,
		FixedCharge:   fixedCharge,
		Active:        true,
		EffectiveFrom: effectiveFrom,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tiers, err := s.parseTiers(tariff.ID, req.Tiers)
	if err != nil {
		return nil, err
	}
	tariff.Tiers = tiers

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, tariff)
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(tariff), nil
}

// parseTiers validates the band layout: bands start at zero, ascend
// contiguously, and only the last one may be open-ended.
func (s *Service) parseTiers(tariffID snowflake.ID, reqs []tariffdomain.TierRequest) ([]tariffdomain.TariffTier, error) {
	if len(reqs) == 0 {
		return nil, tariffdomain.ErrInvalidTiers
	}

	tiers := make([]tariffdomain.TariffTier, 0, len(reqs))
	expectedStart := decimal.Zero
	for i, tierReq := range reqs {
		start, err := decimal.NewFromString(strings.TrimSpace(tierReq.StartVolume))
		if err != nil || !start.Equal(expectedStart) {
			return nil, tariffdomain.ErrInvalidTiers
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(tierReq.RatePerUnit))
		if err != nil || rate.IsNegative() {
			return nil, tariffdomain.ErrInvalidTiers
		}

		tier := tariffdomain.TariffTier{
			ID:          s.genID.Generate(),
			TariffID:    tariffID,
			StartVolume: start,
			RatePerUnit: rate,
		}

		if tierReq.EndVolume == nil {
			if i != len(reqs)-1 {
				return nil, tariffdomain.ErrInvalidTiers
			}
		} else {
			end, err := decimal.NewFromString(strings.TrimSpace(*tierReq.EndVolume))
			if err != nil || end.LessThanOrEqual(start) {
				return nil, tariffdomain.ErrInvalidTiers
			}
			tier.EndVolume = &end
			expectedStart = end
		}

		tiers = append(tiers, tier)
	}
	return tiers, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*tariffdomain.Response, error) {
	tariffID, err := tariffdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, tariffdomain.ErrInvalidID
	}

	tariff, err := s.repo.FindByID(ctx, s.db, tariffID)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, tariffdomain.ErrNotFound
	}

	return s.toResponse(tariff), nil
}

func (s *Service) List(ctx context.Context, req tariffdomain.ListRequest) ([]tariffdomain.Response, error) {
	class := strings.TrimSpace(req.CustomerClass)
	if class != "" && !customerdomain.ValidClass(class) {
		return nil, tariffdomain.ErrInvalidClass
	}

	tariffs, err := s.repo.List(ctx, s.db, tariffdomain.ListFilter{
		CustomerClass: class,
		Active:        req.Active,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]tariffdomain.Response, 0, len(tariffs))
	for _, tariff := range tariffs {
		responses = append(responses, *s.toResponse(tariff))
	}
	return responses, nil
}

func (s *Service) Update(ctx context.Context, req tariffdomain.UpdateRequest) (*tariffdomain.Response, error) {
	tariffID, err := tariffdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, tariffdomain.ErrInvalidID
	}

	tariff, err := s.repo.FindByID(ctx, s.db, tariffID)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, tariffdomain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, tariffdomain.ErrInvalidName
		}
		tariff.Name = name
	}
	if req.Active != nil {
		tariff.Active = *req.Active
	}

	tariff.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, tariff); err != nil {
		return nil, err
	}

	return s.toResponse(tariff), nil
}

func (s *Service) ResolveActive(ctx context.Context, customerClass string, at time.Time) (*tariffdomain.Tariff, error) {
	tariff, err := s.repo.FindActiveForClass(ctx, s.db, customerClass, at)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, tariffdomain.ErrNoActive
	}
	return tariff, nil
}

func (s *Service) toResponse(t *tariffdomain.Tariff) *tariffdomain.Response {
	tiers := make([]tariffdomain.TierResponse, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		tierResp := tariffdomain.TierResponse{
			ID:          tier.ID.String(),
			StartVolume: tier.StartVolume.String(),
			RatePerUnit: tier.RatePerUnit.String(),
		}
		if tier.EndVolume != nil {
			end := tier.EndVolume.String()
			tierResp.EndVolume = &end
		}
		tiers = append(tiers, tierResp)
	}

	return &tariffdomain.Response{
		ID:            t.ID.String(),
		Name:          t.Name,
		CustomerClass: t.CustomerClass,
		FixedCharge:   t.FixedCharge.String(),
		Active:        t.Active,
		EffectiveFrom: t.EffectiveFrom,
		Tiers:         tiers,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
