// Package binance implements the Binance spot market-data collaborators
// consumed by the feed core.
//
// The package includes:
//   - SnapshotClient: one-shot full-depth fetch over REST with
//     rate-limiter admission and a circuit breaker
//   - Stream: the incremental depth subscription over WebSocket
//   - SpotContinuity: the Binance spot update-id continuation rule
//
// Example usage:
//
//	limiter := ratelimit.New(binance.DefaultLimits())
//	source, err := binance.NewSnapshotClient(binance.DefaultRESTConfig(), limiter)
//	stream := binance.NewStream(binance.DefaultStreamConfig())
package binance
