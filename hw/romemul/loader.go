package romemul

import (
	"romcart/emu/log"
	"romcart/hw/pio"
)

// Loader owns the RAM window the bus engine serves. It copies an image into
// the window and then, as a strictly separate second phase, arms the
// monitor/responder pair. The copy must be complete before arming, else the
// host could race a partially copied image.
type Loader struct {
	img       Image
	dma       *DMA
	monitor   *pio.StateMachine
	responder *pio.StateMachine
}

func NewLoader(dma *DMA, monitor, responder *pio.StateMachine) *Loader {
	return &Loader{dma: dma, monitor: monitor, responder: responder}
}

// Stage copies data into the serving window. Staging while the engine is
// armed is a logic error with unknown hardware-state consequences.
func (l *Loader) Stage(data []byte) error {
	if l.Armed() {
		panic("romemul: image staged while the bus engine is armed")
	}
	if err := l.img.Load(data); err != nil {
		return err
	}
	log.ModBus.InfoZ("image staged").Int("bytes", len(data)).End()
	return nil
}

// Arm installs the staged image into the DMA channel and releases both
// sequencers with the high-order address word. From this point on the bus
// timeline runs autonomously until a device reset.
func (l *Loader) Arm() {
	l.dma.SetImage(&l.img)
	l.responder.Arm(AddrHighWord)
	l.monitor.Arm(0)
	log.ModBus.InfoZ("bus engine armed").Hex16("addrhigh", AddrHighWord).End()
}

func (l *Loader) Armed() bool {
	return l.monitor.Armed() || l.responder.Armed()
}
