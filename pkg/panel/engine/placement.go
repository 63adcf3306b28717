package engine

import (
	"context"

	"github.com/wardenhq/warden/pkg/panel/models"
)

// SelectNode picks the first schedulable node that can accommodate the
// requested envelope along all three dimensions simultaneously.
//
// First fit over a stable id-ascending ordering is a deliberately
// simple policy: placement stays deterministic and reproducible, and
// the policy can be swapped later without touching the interface.
// Returns NoCapacity when nothing qualifies; the caller surfaces that
// to the user rather than retrying, since capacity only changes through
// other provision/decommission operations.
//
// This is the read-only preview; Provision uses the lock-holding
// variant below so the check-and-commit is atomic per node.
func (e *Engine) SelectNode(ctx context.Context, req models.Resources) (*models.Node, error) {
	nodes, err := e.store.ListSchedulableNodes(ctx)
	if err != nil {
		return nil, err
	}

	for _, node := range nodes {
		committed, err := e.store.NodeCommittedUsage(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		if node.CanAccommodate(committed, req) {
			return node, nil
		}
	}
	return nil, NewNoCapacityError()
}

// acquireNodeForPlacement walks the schedulable nodes in placement
// order and returns the first fitting one with its per-node lock held.
// The capacity check runs under the lock, so two concurrent provisions
// racing for the last slot on a node serialize there and the loser
// moves on to the next candidate (or NoCapacity). Provisioning on
// different nodes proceeds in parallel.
func (e *Engine) acquireNodeForPlacement(ctx context.Context, req models.Resources) (*models.Node, func(), error) {
	nodes, err := e.store.ListSchedulableNodes(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, node := range nodes {
		unlock := e.lockNode(node.ID)

		committed, err := e.store.NodeCommittedUsage(ctx, node.ID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if node.CanAccommodate(committed, req) {
			return node, unlock, nil
		}
		unlock()
	}
	return nil, nil, NewNoCapacityError()
}

// acquireExplicitNode validates a caller-chosen node and returns it
// with its lock held. Placement is skipped but the capacity check is
// still mandatory; an explicit node that cannot fit the request is
// rejected with the dedicated ExplicitNodeInsufficientCapacity variant.
// Explicit placement may target private nodes, but never inactive or
// maintenance-mode ones.
func (e *Engine) acquireExplicitNode(ctx context.Context, nodeID string, req models.Resources) (*models.Node, func(), error) {
	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, nil, NewNotFoundError("node")
	}

	if !node.Active || node.MaintenanceMode {
		return nil, nil, NewExplicitNodeInsufficientCapacityError(nodeID)
	}

	unlock := e.lockNode(node.ID)

	committed, err := e.store.NodeCommittedUsage(ctx, node.ID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if !node.CanAccommodate(committed, req) {
		unlock()
		return nil, nil, NewExplicitNodeInsufficientCapacityError(nodeID)
	}
	return node, unlock, nil
}
