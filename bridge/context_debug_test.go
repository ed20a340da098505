//go:build modbusdebug

package bridge

import "testing"

func TestDeliveryGuard_PanicsOnSecondDelivery(t *testing.T) {
	g := newDeliveryGuard()
	g.deliver(Context{})

	defer func() {
		if recover() == nil {
			t.Fatal("second delivery did not panic")
		}
	}()
	g.deliver(Context{})
}
