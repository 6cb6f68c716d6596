// README: Allocation service reconciles persisted allocations with the preview packing.
package allocation

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/logger"
	"shuttle/internal/types"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not on journey")
	ErrBadRequest      = errors.New("bad request")
	ErrForbidden       = errors.New("vehicle belongs to another operator")
	// ErrCapacity is returned when a commit would hold more seats on the vehicle than it has.
	ErrCapacity = errors.New("allocation exceeds vehicle capacity")
)

type Store interface {
	Vehicles(ctx context.Context, journeyID types.ID) ([]VehicleInfo, error)
	PaidParties(ctx context.Context, journeyID types.ID) ([]PartyDetail, error)
	Persisted(ctx context.Context, journeyID types.ID) ([]Allocation, error)
	// Commit writes the rows for one vehicle under its seat lock and fails with ErrCapacity
	// when the vehicle would then hold more seats than it has.
	Commit(ctx context.Context, journeyID, vehicleID types.ID, allocs []Allocation) (int, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Seating is every vehicle's manifest plus the paid parties no vehicle can take whole.
type Seating struct {
	Manifests  []Manifest
	Unassigned []PartyDetail
}

// Seating uses persisted rows where a vehicle has any, and packs the remaining parties
// into the uncommitted vehicles. A paid order booked on a committed vehicle after the commit
// stays on that vehicle, since its seats are already counted there.
func (s *Service) Seating(ctx context.Context, journeyID types.ID) (Seating, error) {
	if journeyID == "" {
		return Seating{}, ErrBadRequest
	}
	vehicles, err := s.store.Vehicles(ctx, journeyID)
	if err != nil {
		return Seating{}, err
	}
	parties, err := s.store.PaidParties(ctx, journeyID)
	if err != nil {
		return Seating{}, err
	}
	persisted, err := s.store.Persisted(ctx, journeyID)
	if err != nil {
		return Seating{}, err
	}

	byOrder := make(map[types.ID]PartyDetail, len(parties))
	for _, p := range parties {
		byOrder[p.OrderID] = p
	}
	manifests := map[types.ID]*Manifest{}
	for _, v := range vehicles {
		manifests[v.VehicleID] = &Manifest{
			JourneyID:  journeyID,
			VehicleID:  v.VehicleID,
			OperatorID: v.OperatorID,
			Vehicle:    v.Name,
			Capacity:   v.Capacity,
			Source:     SourcePreview,
		}
	}

	placed := map[types.ID]bool{}
	for _, a := range persisted {
		m, ok := manifests[a.VehicleID]
		if !ok {
			m = &Manifest{JourneyID: journeyID, VehicleID: a.VehicleID}
			manifests[a.VehicleID] = m
		}
		m.Source = SourcePersisted
		p, ok := byOrder[a.OrderID]
		if !ok {
			// allocation for an order that is no longer paid
			continue
		}
		p.Size = a.Seats
		p.Committed = true
		m.Parties = append(m.Parties, p)
		m.SeatsTotal += a.Seats
		placed[a.OrderID] = true
	}
	for _, p := range parties {
		if placed[p.OrderID] {
			continue
		}
		if m, ok := manifests[p.VehicleID]; ok && m.Source == SourcePersisted {
			m.Parties = append(m.Parties, p)
			m.SeatsTotal += p.Size
			placed[p.OrderID] = true
		}
	}

	var boats []Boat
	for _, v := range vehicles {
		if manifests[v.VehicleID].Source == SourcePreview {
			b := v.Boat
			b.Capacity = v.Free()
			boats = append(boats, b)
		}
	}
	var open []Party
	for _, p := range parties {
		if !placed[p.OrderID] {
			open = append(open, Party{OrderID: p.OrderID, Size: p.Size})
		}
	}
	plan := Pack(open, boats)

	var out Seating
	for id, load := range plan.Loads {
		m := manifests[id]
		for _, p := range load.Parties {
			m.Parties = append(m.Parties, byOrder[p.OrderID])
		}
		m.SeatsTotal = load.SeatsTotal
	}
	for _, p := range plan.Unassigned {
		out.Unassigned = append(out.Unassigned, byOrder[p.OrderID])
	}
	if len(out.Unassigned) > 0 {
		logger.FromContext(ctx).Warn("paid parties without a seat",
			zap.String("journey_id", string(journeyID)), zap.Int("parties", len(out.Unassigned)))
	}

	for _, m := range manifests {
		out.Manifests = append(out.Manifests, *m)
	}
	sort.Slice(out.Manifests, func(i, j int) bool { return out.Manifests[i].VehicleID < out.Manifests[j].VehicleID })
	return out, nil
}

// OperatorSeating is Seating cut down to the operator's own vehicles and the unseated parties
// that were booked on them.
func (s *Service) OperatorSeating(ctx context.Context, operatorID, journeyID types.ID) (Seating, error) {
	all, err := s.Seating(ctx, journeyID)
	if err != nil {
		return Seating{}, err
	}
	var out Seating
	for _, m := range all.Manifests {
		if m.OperatorID == operatorID {
			out.Manifests = append(out.Manifests, m)
		}
	}
	for _, p := range all.Unassigned {
		if p.OperatorID == operatorID {
			out.Unassigned = append(out.Unassigned, p)
		}
	}
	return out, nil
}

// Manifest returns one of the operator's vehicles, or all of them when vehicleID is empty.
func (s *Service) Manifest(ctx context.Context, operatorID, journeyID, vehicleID types.ID) ([]Manifest, error) {
	if vehicleID == "" {
		seating, err := s.OperatorSeating(ctx, operatorID, journeyID)
		if err != nil {
			return nil, err
		}
		return seating.Manifests, nil
	}
	seating, err := s.Seating(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	for _, m := range seating.Manifests {
		if m.VehicleID != vehicleID {
			continue
		}
		if m.OperatorID != operatorID {
			return nil, ErrForbidden
		}
		return []Manifest{m}, nil
	}
	return nil, ErrVehicleNotFound
}

// Commit persists the vehicle's current seating. Only parties without a row are written, so
// committing twice is a no-op.
func (s *Service) Commit(ctx context.Context, operatorID, journeyID, vehicleID types.ID) (Manifest, error) {
	ms, err := s.Manifest(ctx, operatorID, journeyID, vehicleID)
	if err != nil {
		return Manifest{}, err
	}
	m := ms[0]
	now := s.now()
	var allocs []Allocation
	for _, p := range m.Parties {
		if p.Committed {
			continue
		}
		allocs = append(allocs, Allocation{
			JourneyID:   journeyID,
			OrderID:     p.OrderID,
			VehicleID:   vehicleID,
			Seats:       p.Size,
			CommittedAt: now,
		})
	}
	if len(allocs) == 0 {
		return m, nil
	}
	n, err := s.store.Commit(ctx, journeyID, vehicleID, allocs)
	if err != nil {
		return Manifest{}, err
	}
	logger.FromContext(ctx).Info("allocation committed",
		zap.String("journey_id", string(journeyID)), zap.String("vehicle_id", string(vehicleID)), zap.Int("rows", n))
	m.Source = SourcePersisted
	for i := range m.Parties {
		m.Parties[i].Committed = true
	}
	return m, nil
}
