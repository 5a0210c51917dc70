package types

// BatchUpdateRequest bundles cancellations and creations to execute as one
// pipeline step. Within each asset class all cancellations run before any
// creation; each item succeeds or fails on its own.
type BatchUpdateRequest struct {
	SubaccountID SubaccountID

	SpotMarketIDsToCancelAll       []MarketID
	DerivativeMarketIDsToCancelAll []MarketID

	SpotOrdersToCancel       []*OrderData
	DerivativeOrdersToCancel []*OrderData

	SpotOrdersToCreate       []*OrderSubmission
	DerivativeOrdersToCreate []*OrderSubmission
}

// BatchCreateResult is the per-submission outcome of a batch creation, keyed
// by the client-supplied cid.
type BatchCreateResult struct {
	Cid       string
	OrderHash OrderID
	Err       error
}

// BatchUpdateResponse reports the outcome of every item in a batch update.
type BatchUpdateResponse struct {
	SpotCancelSuccess       []bool
	DerivativeCancelSuccess []bool

	SpotOrders       []*BatchCreateResult
	DerivativeOrders []*BatchCreateResult
}
