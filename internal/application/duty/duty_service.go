// Package duty implements the duty use cases: ABV from gravity readings,
// duty lines at packaging time, spoilage reclaims and the monthly return.
package duty

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/production"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"go.uber.org/zap"
)

// DutyService handles duty calculation and the monthly return lifecycle
type DutyService struct {
	store  record.Store
	rates  duty.RateTable
	logger *zap.Logger
	now    func() time.Time
}

// NewDutyService creates a new DutyService charging the given rates
func NewDutyService(store record.Store, rates duty.RateTable, logger *zap.Logger) *DutyService {
	return &DutyService{
		store:  store,
		rates:  rates,
		logger: logger.Named("duty"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for finalize/submit timestamps
func (s *DutyService) SetClock(now func() time.Time) {
	s.now = now
}

// Rates returns the rate table in use
func (s *DutyService) Rates() duty.RateTable {
	return s.rates
}

// CalculateABV computes ABV from gravity readings without storing anything
func (s *DutyService) CalculateABV(req ABVRequest) ABVResponse {
	abv, ok := duty.ABVFromGravity(valueOrZero(req.OG), valueOrZero(req.FG))
	if !ok {
		return ABVResponse{}
	}
	return ABVResponse{ABV: &abv, Determined: true}
}

// CreateBrew records a new brew. Gyle numbers are unique.
func (s *DutyService) CreateBrew(ctx context.Context, req CreateBrewRequest) (*BrewResponse, error) {
	gyle := strings.TrimSpace(req.GyleNumber)
	if gyle == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "gyle number is required")
	}
	if req.BrewDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "brew date is required")
	}
	if req.VolumeLitres.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "volume cannot be negative")
	}

	b := production.Brew{
		GyleNumber:   gyle,
		RecipeID:     record.FromPtr(req.RecipeID),
		BrewDate:     req.BrewDate.UTC(),
		OG:           record.FromPtr(req.OG),
		FG:           record.FromPtr(req.FG),
		VolumeLitres: req.VolumeLitres,
	}
	if abv, ok := duty.ABVFromGravity(b.OG.OrElse(decimal.Zero), b.FG.OrElse(decimal.Zero)); ok {
		b.ABV = record.Some(abv)
	}

	err := s.store.WithTx(ctx, func(tx record.Store) error {
		existing, err := tx.GetAll(ctx, production.TableBrews,
			record.Where(record.Eq("gyle_number", record.Text(gyle))))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return shared.Errorf(shared.CodeAlreadyExists, "gyle %s is already recorded", gyle)
		}
		row, err := tx.Insert(ctx, production.TableBrews, b.Fields())
		if err != nil {
			return err
		}
		b = production.BrewFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToBrewResponse(b)
	return &resp, nil
}

// RecordGravity stores gravity readings on a brew together with the ABV
// computed from them. An undetermined ABV clears the stored one.
func (s *DutyService) RecordGravity(ctx context.Context, brewID string, req ABVRequest) (*BrewResponse, error) {
	abv := s.CalculateABV(req)
	fields := record.Fields{
		"og":  optionalDec(req.OG),
		"fg":  optionalDec(req.FG),
		"abv": optionalDec(abv.ABV),
	}
	row, err := s.store.Update(ctx, production.TableBrews, brewID, fields)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Errorf(shared.CodeNotFound, "brew %s not found", brewID)
		}
		return nil, err
	}
	if !abv.Determined {
		s.logger.Info("ABV undetermined", zap.String("brew_id", brewID))
	}
	resp := ToBrewResponse(production.BrewFromRow(row))
	return &resp, nil
}

// RecordPackaging creates the duty line for a packaging run. It fails with
// PERIOD_FINALIZED when the month of the run is already finalized.
func (s *DutyService) RecordPackaging(ctx context.Context, req PackagingRequest) (*LineResponse, error) {
	p := duty.Packaging{
		BrewID:          record.FromPtr(req.BrewID),
		Gyle:            strings.TrimSpace(req.Gyle),
		PackagedAt:      req.PackagedAt,
		ContainerLitres: req.ContainerLitres,
		Containers:      req.Containers,
	}

	var line duty.Line
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		if brewID, ok := p.BrewID.Get(); ok {
			row, err := tx.Get(ctx, production.TableBrews, brewID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Errorf(shared.CodeNotFound, "brew %s not found", brewID)
				}
				return err
			}
			brew := production.BrewFromRow(row)
			if p.Gyle == "" {
				p.Gyle = brew.GyleNumber
			}
			if req.ABV == nil {
				abv, ok := brew.ABV.Get()
				if !ok {
					return shared.Errorf(shared.CodeInvalidInput, "brew %s has no ABV; record gravities or pass an ABV", brewID)
				}
				p.ABV = abv
			}
		}
		if req.ABV != nil {
			p.ABV = *req.ABV
		}

		var err error
		line, err = duty.NewLine(s.rates, p)
		if err != nil {
			return err
		}
		if err := ensureOpen(ctx, tx, line.Period); err != nil {
			return err
		}
		row, err := tx.Insert(ctx, duty.TableLines, line.Fields())
		if err != nil {
			return err
		}
		line = duty.LineFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Duty line recorded",
		zap.String("period", line.Period),
		zap.String("gyle", line.Gyle),
		zap.String("category", string(line.Category)),
		zap.String("lpa", line.LPA.String()),
		zap.String("duty", line.Duty.String()))
	resp := ToLineResponse(line)
	return &resp, nil
}

// RecordSpoilage records duty reclaimable on spoiled beer. The reclaim is
// charged at the rate of the gyle's most recent packaging line.
func (s *DutyService) RecordSpoilage(ctx context.Context, req SpoilageRequest) (*ReclaimResponse, error) {
	if _, err := duty.ParsePeriod(req.Period); err != nil {
		return nil, err
	}
	gyle := strings.TrimSpace(req.Gyle)

	var reclaim duty.Reclaim
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		if err := ensureOpen(ctx, tx, req.Period); err != nil {
			return err
		}
		rows, err := tx.GetAll(ctx, duty.TableLines, record.Query{
			Where:   record.Eq("gyle", record.Text(gyle)),
			OrderBy: []record.Order{record.Desc("packaged_at")},
			Limit:   1,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return shared.Errorf(shared.CodeNotFound, "no packaging recorded for gyle %s", gyle)
		}

		reclaim, err = duty.NewReclaim(duty.LineFromRow(rows[0]), req.Period, req.Litres, strings.TrimSpace(req.Reason), s.now())
		if err != nil {
			return err
		}
		row, err := tx.Insert(ctx, duty.TableReclaims, reclaim.Fields())
		if err != nil {
			return err
		}
		reclaim = duty.ReclaimFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToReclaimResponse(reclaim)
	return &resp, nil
}

// ListLines returns the duty lines of a period in packaging order
func (s *DutyService) ListLines(ctx context.Context, period string) ([]LineResponse, error) {
	lines, err := loadLines(ctx, s.store, period)
	if err != nil {
		return nil, err
	}
	out := make([]LineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, ToLineResponse(l))
	}
	return out, nil
}

// BuildReturn returns the return for a period. A draft is recomputed from
// the period's lines and reclaims and saved; a finalized or submitted
// return is returned as stored.
func (s *DutyService) BuildReturn(ctx context.Context, period string) (*ReturnResponse, error) {
	if _, err := duty.ParsePeriod(period); err != nil {
		return nil, err
	}
	var ret duty.Return
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		var err error
		ret, err = s.draft(ctx, tx, period)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.reportAnomaly(ret)
	resp := ToReturnResponse(ret)
	return &resp, nil
}

// Finalize locks a period. Further lines or reclaims for it are rejected.
func (s *DutyService) Finalize(ctx context.Context, period string) (*ReturnResponse, error) {
	return s.transition(ctx, period, func(r *duty.Return) error { return r.Finalize(s.now()) })
}

// Submit marks a finalized period as filed
func (s *DutyService) Submit(ctx context.Context, period string) (*ReturnResponse, error) {
	return s.transition(ctx, period, func(r *duty.Return) error { return r.Submit(s.now()) })
}

func (s *DutyService) transition(ctx context.Context, period string, apply func(r *duty.Return) error) (*ReturnResponse, error) {
	if _, err := duty.ParsePeriod(period); err != nil {
		return nil, err
	}
	var ret duty.Return
	err := s.store.WithTx(ctx, func(tx record.Store) error {
		r, err := s.draft(ctx, tx, period)
		if err != nil {
			return err
		}
		if err := apply(&r); err != nil {
			return err
		}
		row, err := tx.Update(ctx, duty.TableReturns, r.ID, record.Fields{
			"status":       record.Text(string(r.Status)),
			"finalized_at": record.OptionalTime(r.FinalizedAt),
			"submitted_at": record.OptionalTime(r.SubmittedAt),
		})
		if err != nil {
			return err
		}
		ret = duty.ReturnFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Duty return updated",
		zap.String("period", ret.Period),
		zap.String("status", string(ret.Status)),
		zap.String("net_duty", ret.NetDuty.String()))
	s.reportAnomaly(ret)
	resp := ToReturnResponse(ret)
	return &resp, nil
}

// draft loads the stored return of a period. Unless it is locked, its
// totals are recomputed and written back.
func (s *DutyService) draft(ctx context.Context, tx record.Store, period string) (duty.Return, error) {
	stored, found, err := loadReturn(ctx, tx, period)
	if err != nil {
		return duty.Return{}, err
	}
	if found && stored.Status.Locked() {
		return stored, nil
	}

	lines, err := loadLines(ctx, tx, period)
	if err != nil {
		return duty.Return{}, err
	}
	reclaimRows, err := tx.GetAll(ctx, duty.TableReclaims, record.Where(record.Eq("period", record.Text(period))))
	if err != nil {
		return duty.Return{}, err
	}
	reclaims := make([]duty.Reclaim, 0, len(reclaimRows))
	for _, r := range reclaimRows {
		reclaims = append(reclaims, duty.ReclaimFromRow(r))
	}

	fresh := duty.BuildReturn(period, lines, reclaims)
	var row record.Row
	if found {
		row, err = tx.Update(ctx, duty.TableReturns, stored.ID, fresh.Fields())
	} else {
		row, err = tx.Insert(ctx, duty.TableReturns, fresh.Fields())
	}
	if err != nil {
		return duty.Return{}, err
	}
	return duty.ReturnFromRow(row), nil
}

func (s *DutyService) reportAnomaly(r duty.Return) {
	if !r.Anomaly {
		return
	}
	s.logger.Warn("Spoilage reclaim exceeds duty for period",
		zap.String("period", r.Period),
		zap.String("gross_duty", r.GrossDuty.String()),
		zap.String("reclaim_duty", r.ReclaimDuty.String()),
		zap.String("net_duty", r.NetDuty.String()))
}

// ensureOpen fails with PERIOD_FINALIZED when the period's return is locked
func ensureOpen(ctx context.Context, tx record.Store, period string) error {
	r, found, err := loadReturn(ctx, tx, period)
	if err != nil {
		return err
	}
	if found && r.Status.Locked() {
		return shared.Errorf(shared.CodePeriodFinalized, "duty period %s is %s", period, r.Status)
	}
	return nil
}

func loadReturn(ctx context.Context, store record.Store, period string) (duty.Return, bool, error) {
	rows, err := store.GetAll(ctx, duty.TableReturns, record.Where(record.Eq("period", record.Text(period))))
	if err != nil {
		return duty.Return{}, false, err
	}
	if len(rows) == 0 {
		return duty.Return{}, false, nil
	}
	return duty.ReturnFromRow(rows[0]), true, nil
}

func loadLines(ctx context.Context, store record.Store, period string) ([]duty.Line, error) {
	rows, err := store.GetAll(ctx, duty.TableLines,
		record.Where(record.Eq("period", record.Text(period))).Sorted(record.Asc("packaged_at")))
	if err != nil {
		return nil, err
	}
	lines := make([]duty.Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, duty.LineFromRow(r))
	}
	return lines, nil
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func optionalDec(d *decimal.Decimal) record.Value {
	if d == nil {
		return record.Null()
	}
	return record.Dec(*d)
}
