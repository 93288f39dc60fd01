// Package sim provides the discrete-event delivery simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - order.go: Order, OrderRecord and the delivery/status vocabulary
//   - event.go: Event types that drive the simulation (OrderPlaced, OrderDelivered, ReplenishmentArrival)
//   - simulator.go: The event loop, stock bookkeeping and profit settlement
//
// One tick is one day. Every order is placed at day 0; its delivery is
// scheduled after a uniformly drawn base delay scaled by the multiplier of a
// weighted delivery mode. At delivery the order either ships from stock, is
// returned, or stocks out.
//
// # Sub-packages
//
//   - sim/dataset/: CSV order ingestion, summary statistics and sampling
//   - sim/inventory/: safety stock, reorder point and order-quantity analysis
//   - sim/forecast/: daily demand forecasting with holiday effects
//   - sim/route/: capacity-constrained delivery route construction
//
// Randomness is drawn from a PartitionedRNG so each concern (sampling,
// delays, delivery modes, returns) has its own reproducible stream.
package sim
