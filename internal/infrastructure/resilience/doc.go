/*
Package resilience provides a circuit breaker for best-effort writes.

# Overview

Audit rows are written after the response has been sent. When the data store
is slow or down, every request would otherwise leave behind a goroutine
waiting on a doomed insert. The breaker trips after repeated failures and
sheds writes until a cooldown elapses, then admits a few trial calls.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable trip predicate, trial count and cooldown
- Context-aware calls; cancellation is not counted as a failure
- State change callback for logging and metrics
- Injectable clock

# Usage

	breaker := resilience.New("audit", resilience.Settings{
		Trials:   2,
		Cooldown: 30 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return st.Insert(ctx, store.TableAPILogs, row)
	})

# Pattern

	Closed --[trip]-> Open --[cooldown]-> Half-Open --[trials succeed]-> Closed
	                                          |
	                                      [failure]
	                                          v
	                                         Open
*/
package resilience
