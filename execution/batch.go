package execution

import (
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
)

// BatchUpdate executes a batch of cancellations and creations as one
// pipeline step. Within each asset class the cancel-alls run first, then the
// individual cancellations, then the creations, so a batch can replace a
// whole quote set atomically from the caller's point of view. Each item
// succeeds or fails on its own, one bad leg never poisons the rest.
func (e *Engine) BatchUpdate(req *types.BatchUpdateRequest) *types.BatchUpdateResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp := &types.BatchUpdateResponse{}

	e.batchCancelAll(req.SubaccountID, types.MarketClassSpot, req.SpotMarketIDsToCancelAll)
	e.batchCancelAll(req.SubaccountID, types.MarketClassDerivative, req.DerivativeMarketIDsToCancelAll)

	resp.SpotCancelSuccess = e.batchCancel(req.SubaccountID, types.MarketClassSpot, req.SpotOrdersToCancel)
	resp.DerivativeCancelSuccess = e.batchCancel(req.SubaccountID, types.MarketClassDerivative, req.DerivativeOrdersToCancel)

	resp.SpotOrders = e.batchCreate(types.MarketClassSpot, req.SpotOrdersToCreate)
	resp.DerivativeOrders = e.batchCreate(types.MarketClassDerivative, req.DerivativeOrdersToCreate)

	return resp
}

// BatchCreateSpotOrders submits a batch of spot order creations, one result
// per submission keyed by cid.
func (e *Engine) BatchCreateSpotOrders(creates []*types.OrderSubmission) []*types.BatchCreateResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCreate(types.MarketClassSpot, creates)
}

// BatchCreateDerivativeOrders submits a batch of derivative order creations.
func (e *Engine) BatchCreateDerivativeOrders(creates []*types.OrderSubmission) []*types.BatchCreateResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCreate(types.MarketClassDerivative, creates)
}

// BatchCancelSpotOrders cancels a batch of spot orders for the subaccount,
// one success flag per item.
func (e *Engine) BatchCancelSpotOrders(sub types.SubaccountID, cancels []*types.OrderData) []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCancel(sub, types.MarketClassSpot, cancels)
}

// BatchCancelDerivativeOrders cancels a batch of derivative orders for the
// subaccount.
func (e *Engine) BatchCancelDerivativeOrders(sub types.SubaccountID, cancels []*types.OrderData) []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCancel(sub, types.MarketClassDerivative, cancels)
}

func (e *Engine) batchCancelAll(sub types.SubaccountID, class types.MarketClass, marketIDs []types.MarketID) {
	for _, id := range marketIDs {
		m, err := e.market(id)
		if err != nil || m.mkt.Class != class {
			// unknown or mismatched markets are skipped, there is nothing to
			// cancel on them
			continue
		}
		cancelled := m.CancelAllBySubaccount(sub, types.OrderMaskAny)
		if len(cancelled) > 0 && e.log.GetLevel() == logging.DebugLevel {
			e.log.Debug("batch cancelled all orders",
				logging.MarketID(id),
				logging.SubaccountID(sub),
				logging.Int("count", len(cancelled)))
		}
	}
}

func (e *Engine) batchCancel(sub types.SubaccountID, class types.MarketClass, cancels []*types.OrderData) []bool {
	if len(cancels) == 0 {
		return nil
	}
	out := make([]bool, 0, len(cancels))
	for _, d := range cancels {
		ok := false
		if m, err := e.market(d.MarketID); err == nil && m.mkt.Class == class && d.SubaccountID == sub {
			_, err = m.CancelByOrderData(*d)
			ok = err == nil
		}
		out = append(out, ok)
	}
	return out
}

func (e *Engine) batchCreate(class types.MarketClass, creates []*types.OrderSubmission) []*types.BatchCreateResult {
	if len(creates) == 0 {
		return nil
	}
	out := make([]*types.BatchCreateResult, 0, len(creates))
	for _, s := range creates {
		result := &types.BatchCreateResult{Cid: s.Cid}
		conf, err := e.submitClassed(class, *s)
		if err != nil {
			result.Err = err
		} else {
			result.OrderHash = conf.Order.ID
		}
		out = append(out, result)
	}
	return out
}
