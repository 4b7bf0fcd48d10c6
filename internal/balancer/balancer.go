// Package balancer chooses a media backend for a new publisher/subscriber
// stream, respecting capacity, reserve and group/version affinity (spec
// §4.2). It is pure and stateless: callers supply the current candidate
// pool and load counters; the balancer does not touch the database.
package balancer

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

// Load is the current publisher/subscriber occupancy of a backend, as
// seen by the caller (typically aggregated from AgentConnection rows).
type Load struct {
	ActivePublishers      int
	ActiveOwnedPublishers int
	ActiveSubscribers     int
}

// Candidate pairs a backend with its current load.
type Candidate struct {
	Backend models.JanusBackend
	Load    Load
}

// reserveFactor weights each active subscriber in freeCapacity; at 1 a
// subscriber costs the same as one plain (non-owned) publisher.
const reserveFactor = 1

// freeCapacity implements spec §4.2 step 2's scoring formula:
//
//	balancer_capacity − (active_publishers + N²×active_owned_publishers + active_subscribers×reserve_factor)
func freeCapacity(c Candidate, meshSize int) int {
	n2 := meshSize * meshSize
	used := c.Load.ActivePublishers + n2*c.Load.ActiveOwnedPublishers + c.Load.ActiveSubscribers*reserveFactor
	return c.Backend.BalancerCapacity - used
}

// Request describes one allocation request to Pick.
type Request struct {
	Room          models.Room
	Intent        models.ConnectIntent
	MeshSize      int    // number of owned-room mesh peers; 1 outside owned rooms
	CompliantAPI  string // required JanusBackend.APIVersion for new candidates
	PinnedBackend *uuid.UUID
	// RoomReserve is room.reserve (0 if unset): the slots this room has
	// pre-committed on its backend. RoomHoldsReserve marks whether the
	// requesting agent belongs to the room that owns that reserve.
	RoomReserve      int
	RoomHoldsReserve bool
}

// Pick selects a backend from candidates for the given request.
// Subscriber intents are expected to be pre-pinned by the caller (via
// Request.PinnedBackend) once a publisher stream exists; Pick still
// honors that pin directly if provided, but still enforces the reserve
// floor against the pinned backend's current load.
func Pick(candidates []Candidate, req Request) (models.JanusBackend, error) {
	meshSize := req.MeshSize
	if meshSize < 1 {
		meshSize = 1
	}

	if req.PinnedBackend != nil {
		for _, c := range candidates {
			if c.Backend.ID == *req.PinnedBackend {
				return applyReserve(c, meshSize, req)
			}
		}
		return models.JanusBackend{}, apperr.New(apperr.KindBackendNotFound, "pinned backend not in candidate pool")
	}

	pool := filterCandidates(candidates, req)
	if len(pool) == 0 {
		return models.JanusBackend{}, apperr.New(apperr.KindNoAvailableBackends, "no backend matches group/version affinity")
	}

	best, _, tied := bestByFreeCapacity(pool, meshSize)
	if len(tied) > 1 {
		best = tied[rand.Intn(len(tied))]
	}
	return applyReserve(best, meshSize, req)
}

// applyReserve implements spec §4.2 step 5 / §8 scenario 5: a backend's
// reserve carve-out is a floor for requests outside the reserve-holding
// room (they may consume free capacity only down to rawFree > reserve),
// and a relaxed ceiling for the reserve holder itself (it may proceed
// whenever any free capacity remains at all, i.e. rawFree > 0).
func applyReserve(c Candidate, meshSize int, req Request) (models.JanusBackend, error) {
	rawFree := freeCapacity(c, meshSize)
	if req.RoomHoldsReserve {
		if rawFree > 0 {
			return c.Backend, nil
		}
		return models.JanusBackend{}, apperr.New(apperr.KindCapacityExceeded, "backend at full capacity")
	}
	if rawFree > req.RoomReserve {
		return c.Backend, nil
	}
	return models.JanusBackend{}, apperr.New(apperr.KindCapacityExceeded, "reserve floor reached for this backend")
}

func filterCandidates(candidates []Candidate, req Request) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if req.CompliantAPI != "" && c.Backend.APIVersion != req.CompliantAPI {
			continue
		}
		if req.Room.JanusGroup != nil && c.Backend.Group != *req.Room.JanusGroup {
			continue
		}
		out = append(out, c)
	}
	return out
}

// bestByFreeCapacity returns the highest-scoring candidate, its score,
// and the set of candidates tied for that top score (for random
// tie-break per spec §4.2 step 4).
func bestByFreeCapacity(pool []Candidate, meshSize int) (Candidate, int, []Candidate) {
	bestFree := freeCapacity(pool[0], meshSize)
	tied := []Candidate{pool[0]}
	for _, c := range pool[1:] {
		free := freeCapacity(c, meshSize)
		switch {
		case free > bestFree:
			bestFree = free
			tied = []Candidate{c}
		case free == bestFree:
			tied = append(tied, c)
		}
	}
	return tied[0], bestFree, tied
}
