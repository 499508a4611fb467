package kiosk

import "net"

type Api interface {
	SetKiosk(k *Kiosk)
	Serve(l net.Listener) error
}
