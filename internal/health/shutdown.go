package health

import "sync/atomic"

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process-wide readiness gate. The server sets it false
// when graceful shutdown starts so the gateway stops routing new sales here
// while in-flight invoices finish.
func SetReady(v bool) { ready.Store(v) }

func isReady() bool { return ready.Load() }
