package ir

import (
	"errors"
	"log"
	"sync"

	"ircam/config"
	"ircam/errs"
	"ircam/report"
	"ircam/transport"
)

// payloadStart is the offset of the 300-byte IR payload inside a
// standard input report (distinct from clusterStart, which indexes
// into that same payload at a different stride for descriptors).
const payloadStart = 59

// payloadLen is the width of one fragment's IR payload.
const payloadLen = 300

// irRequestCRC matches mcu's: offset 47 over [11, 47), for "11 03"
// envelopes.
var irRequestCRC = report.CRC{Location: 47, Start: 11, Length: 36}

// Pipeline owns the dedicated reader loop: it reads inbound reports,
// publishes the latest standard report, reassembles IMAGE-mode
// fragments or re-requests single-fragment modes, and runs registered
// update hooks. Grounded on the teacher's events/events.go mutex-
// guarded publish pattern, adapted from an event-bus fan-out to a
// single-slot "latest value" publish since only the freshest report
// and image ever matter to a reader.
type Pipeline struct {
	Device    transport.Device
	Counter   *report.PacketCounter
	Mode      config.IRMode
	FragCount byte

	mu             sync.RWMutex
	standardReport []byte
	image          []byte
	hasImage       bool
	scratch        []byte
	lastFragment   int // -1 means "none yet this cycle"

	hooksMu sync.RWMutex
	hooks   []func()
}

// New builds a Pipeline ready to Run. mode and fragCount come from
// the same bring-up parameters passed to mcu.Bringup.
func New(device transport.Device, counter *report.PacketCounter, mode config.IRMode, fragCount byte) *Pipeline {
	return &Pipeline{
		Device:       device,
		Counter:      counter,
		Mode:         mode,
		FragCount:    fragCount,
		scratch:      make([]byte, (int(fragCount)+1)*payloadLen),
		lastFragment: -1,
	}
}

// Run blocks, reading and dispatching reports until the transport
// closes. It returns nil on clean shutdown (errs.TransportClosedError);
// any other read error is logged and the loop keeps reading.
func (p *Pipeline) Run() error {
	for {
		in, err := p.Device.Read()
		if err != nil {
			var closed *errs.TransportClosedError
			if errors.As(err, &closed) {
				return nil
			}
			log.Printf("ir: read error: %v; resyncing", err)
			continue
		}

		if len(in) == 0 || (in[0] != 0x30 && in[0] != 0x31) {
			continue
		}
		p.publishStandardReport(in)

		if in[0] == 0x31 {
			if err := p.handleIRReport(in); err != nil {
				log.Printf("ir: %v", err)
			}
		}

		p.runHooks()
	}
}

func (p *Pipeline) handleIRReport(in []byte) error {
	if p.Mode != config.IRImage {
		return p.requestFragment(0)
	}
	if len(in) < payloadStart+payloadLen {
		return errors.New("ir: short IR report")
	}
	if in[49] != 0x03 {
		ack := byte(0)
		if p.lastFragment >= 0 {
			ack = byte(p.lastFragment)
		}
		return p.requestFragment(ack)
	}

	f := in[52]
	p.mu.Lock()
	copy(p.scratch[int(f)*payloadLen:int(f)*payloadLen+payloadLen], in[payloadStart:payloadStart+payloadLen])
	previous := p.lastFragment
	p.mu.Unlock()

	switch {
	case f < p.FragCount:
		p.clearImage()
		p.setLastFragment(int(f))
		return p.requestFragment(f)
	case previous != int(f):
		p.publishImage(p.snapshotScratch())
		p.resetScratch()
		p.setLastFragment(int(f))
		return p.requestFragment(f)
	default:
		// f == FragCount and the previous fragment was also FragCount:
		// the device stalled mid-cycle. Resync from scratch.
		p.clearImage()
		p.setLastFragment(-1)
		return p.requestFragment(0)
	}
}

// requestFragment writes a request-IR-report command acknowledging
// ack, using the shared bring-up packet counter.
func (p *Pipeline) requestFragment(ack byte) error {
	pn := p.Counter.Next()
	data := report.Build(0x11, 0x03, requestArgument(ack), pn, irRequestCRC)
	return p.Device.Write(data)
}

// requestArgument builds the "11 03" request-IR-report argument:
// three reserved zero bytes, the acknowledge fragment index, 33 more
// zero bytes, and a trailing 0xFF.
func requestArgument(ack byte) []byte {
	arg := make([]byte, 38)
	arg[3] = ack
	arg[37] = 0xFF
	return arg
}

func (p *Pipeline) publishStandardReport(in []byte) {
	cp := append([]byte(nil), in...)
	p.mu.Lock()
	p.standardReport = cp
	p.mu.Unlock()
}

func (p *Pipeline) clearImage() {
	p.mu.Lock()
	p.image = nil
	p.hasImage = false
	p.mu.Unlock()
}

func (p *Pipeline) publishImage(img []byte) {
	p.mu.Lock()
	p.image = img
	p.hasImage = true
	p.mu.Unlock()
}

func (p *Pipeline) snapshotScratch() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.scratch...)
}

func (p *Pipeline) resetScratch() {
	p.mu.Lock()
	p.scratch = make([]byte, (int(p.FragCount)+1)*payloadLen)
	p.mu.Unlock()
}

func (p *Pipeline) setLastFragment(f int) {
	p.mu.Lock()
	p.lastFragment = f
	p.mu.Unlock()
}

// LatestStandardReport returns the most recently published 0x30/0x31
// report, or nil if none has arrived yet.
func (p *Pipeline) LatestStandardReport() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.standardReport
}

// LatestImage returns the most recently completed IMAGE assembly. The
// returned slice is never a torn frame: it is either the last
// complete image or the one published strictly before it.
func (p *Pipeline) LatestImage() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasImage {
		return nil, false
	}
	return p.image, true
}

// LatestClusters parses the current standard report's IR payload into
// cluster descriptors, for POINTING/CLUSTERING modes.
func (p *Pipeline) LatestClusters() ([]ClusterDescriptor, bool) {
	rep := p.LatestStandardReport()
	if rep == nil || p.Mode == config.IRImage {
		return nil, false
	}
	return ParseClusters(rep, p.Mode), true
}

// RegisterUpdateHook appends fn to the hook list the reader loop
// invokes after every dispatched report.
func (p *Pipeline) RegisterUpdateHook(fn func()) {
	p.hooksMu.Lock()
	defer p.hooksMu.Unlock()
	p.hooks = append(p.hooks, fn)
}

func (p *Pipeline) runHooks() {
	p.hooksMu.RLock()
	hooks := append([]func(){}, p.hooks...)
	p.hooksMu.RUnlock()
	for _, h := range hooks {
		h()
	}
}
