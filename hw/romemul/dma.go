package romemul

import (
	"context"
	"sync/atomic"

	"romcart/emu/log"
	"romcart/hw/pio"
)

// DMA chains the responder's RX FIFO to its TX FIFO through the active
// image: for every captured address it pushes back the corresponding data
// word, with no firmware involvement per access. It is the software
// analogue of pre-filling an address-indexed reply FIFO: once armed, the
// responder's data-drive step never stalls on firmware.
type DMA struct {
	rx, tx *pio.FIFO
	img    atomic.Pointer[Image]
}

func NewDMA(rx, tx *pio.FIFO) *DMA {
	return &DMA{rx: rx, tx: tx}
}

// SetImage installs the image lookups are served from. Called once at arm
// time, before the responder can produce any address.
func (d *DMA) SetImage(img *Image) {
	d.img.Store(img)
}

// Run services the FIFO pair until ctx is canceled.
func (d *DMA) Run(ctx context.Context) error {
	for {
		addr, err := d.rx.Pop(ctx)
		if err != nil {
			return err
		}
		img := d.img.Load()
		if img == nil {
			// Cannot happen when the arm ordering is respected: the
			// responder is released only after the image is installed.
			log.ModBus.ErrorZ("address captured with no active image").
				Hex32("addr", addr).
				End()
			continue
		}
		word := img.Word(addr)
		if err := d.tx.Push(ctx, uint32(word)); err != nil {
			return err
		}
		log.ModBus.DebugZ("bus transaction").
			Hex32("addr", addr).
			Hex16("data", word).
			End()
	}
}
