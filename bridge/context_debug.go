//go:build modbusdebug

package bridge

import (
	"fmt"
	"sync/atomic"
)

// deliveryGuard fails loudly when a callback context is handed to its
// callback more than once.
type deliveryGuard struct {
	delivered atomic.Bool
}

func newDeliveryGuard() *deliveryGuard {
	return &deliveryGuard{}
}

func (g *deliveryGuard) deliver(ctx Context) {
	if !g.delivered.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("bridge: callback context %p delivered twice", ctx.ptr))
	}
}
