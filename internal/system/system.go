// Package system aggregates the Bus, CPU and PPU into the single
// "system" value called for by the DESIGN NOTES' global-singletons
// critique: there are no package-level singletons anywhere in this
// module, and every cross-component access (PPU raising an interrupt,
// CPU reading IE/IF) flows through the Bus that CPU and PPU share.
package system

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/mochadwi/gbcore/internal/bus"
	"github.com/mochadwi/gbcore/internal/cart"
	"github.com/mochadwi/gbcore/internal/cpu"
)

// CyclesPerFrame is 154 scanlines * 456 dots, the DMG's fixed frame
// length in T-cycles (70,224).
const CyclesPerFrame = 154 * 456

// Button identifies one of the eight DMG joypad inputs.
type Button int

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

var (
	// ErrInvalidROM is returned by LoadROM when the image is too short
	// to contain a header, or its declared ROM size disagrees with the
	// buffer length.
	ErrInvalidROM = errors.New("system: invalid ROM image")
	// ErrUnsupportedMapper names a mapper byte outside the recognized
	// set. LoadROM never returns it: it always degrades such carts to
	// ROM_ONLY. It is exported for callers that check Header.Mapper
	// themselves and want to reject instead.
	ErrUnsupportedMapper = errors.New("system: unsupported mapper")
)

// System is a single owning aggregate of CPU, Bus and PPU, replacing
// the original implementation's process-wide singletons. All mutation
// of shared state goes through the Bus.
type System struct {
	Bus *bus.Bus
	CPU *cpu.CPU

	buttons byte   // active-low mask cached between SetButton calls
	cycles  int    // cycles accumulated since the last RunFrame boundary
	bootROM []byte // reapplied to each new Bus a LoadROM creates
}

// New constructs a System with no cartridge loaded (a zeroed 32 KiB
// ROM_ONLY placeholder); call LoadROM before running.
func New() *System {
	s := &System{buttons: 0xFF}
	s.Bus = bus.New(make([]byte, 0x8000))
	s.CPU = cpu.New(s.Bus)
	s.CPU.ResetNoBoot()
	return s
}

// LoadROM replaces the cartridge and performs a full reset, per
// spec.md §6. It validates the header before swapping anything in, so
// a failed load leaves the current System untouched.
func (s *System) LoadROM(rom []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidROM, err)
	}
	wantLen := h.ROMBanks * 0x4000
	if len(rom) != wantLen {
		return fmt.Errorf("%w: header declares %d bytes, image has %d", ErrInvalidROM, wantLen, len(rom))
	}

	s.Bus = bus.New(rom)
	s.CPU = cpu.New(s.Bus)
	if s.bootROM != nil {
		s.Bus.SetBootROM(s.bootROM)
	}
	s.Reset()
	return nil
}

// Reset re-initializes CPU, PPU and MMU. If a boot ROM was installed
// via SetBootROM and its overlay is still active, PC starts at 0x0000
// to run it; otherwise PC starts at the standard DMG post-boot state,
// 0x0100, per spec.md §3.
func (s *System) Reset() {
	s.CPU.ResetNoBoot()
	if s.Bus.BootROMEnabled() {
		s.CPU.SetPC(0x0000)
	}
	s.cycles = 0
	s.Bus.SetJoypadState(^s.buttons)
}

// SetBootROM installs a boot ROM image to run instead of the
// cartridge's entry point at 0x0100. Call it any time before or after
// Reset; Reset (and LoadROM, which calls Reset) always honors the
// overlay's current enabled state when choosing PC's initial value.
// The image is retained so a later LoadROM (which constructs a fresh
// Bus) reinstalls it automatically.
func (s *System) SetBootROM(data []byte) {
	s.bootROM = data
	s.Bus.SetBootROM(data)
	if s.Bus.BootROMEnabled() {
		s.CPU.SetPC(0x0000)
	}
}

// StepInstruction advances the CPU by one instruction (servicing any
// pending interrupt first) and, in lockstep, the PPU by the same
// cycle delta, then returns the cycles consumed.
func (s *System) StepInstruction() int {
	cycles := s.CPU.Step()
	s.cycles += cycles
	return cycles
}

// RunFrame calls StepInstruction until at least CyclesPerFrame cycles
// have accumulated since the previous call, then returns.
func (s *System) RunFrame() {
	for s.cycles < CyclesPerFrame {
		s.StepInstruction()
	}
	s.cycles -= CyclesPerFrame
}

// FrameBuffer returns a read-only view of the 160x144 indexed frame
// buffer; each byte is a shade ID in [0,3], 0 lightest and 3 darkest.
func (s *System) FrameBuffer() []byte {
	return s.Bus.PPU().FrameBuffer()
}

// buttonBit maps a Button to its bit position in the bus.Joyp* layout
// (bit0 Right/bit1 Left/bit2 Up/bit3 Down, bit4 A/bit5 B/bit6 Select/
// bit7 Start); Bus itself multiplexes the two groups by P14/P15. The
// System keeps that mask active-low and inverts it for
// Bus.SetJoypadState, which takes set bits as pressed.
func buttonBit(b Button) byte {
	switch b {
	case ButtonRight:
		return 0
	case ButtonLeft:
		return 1
	case ButtonUp:
		return 2
	case ButtonDown:
		return 3
	case ButtonA:
		return 4
	case ButtonB:
		return 5
	case ButtonSelect:
		return 6
	case ButtonStart:
		return 7
	default:
		return 0
	}
}

// SetButton sets or clears one joypad input; if never called the
// joypad register's four input bits all read back as 1 (unpressed),
// per spec.md §6.
func (s *System) SetButton(b Button, pressed bool) {
	bit := buttonBit(b)
	if pressed {
		s.buttons &^= 1 << bit
	} else {
		s.buttons |= 1 << bit
	}
	s.Bus.SetJoypadState(^s.buttons)
}

// ExportBatteryRAM returns the cartridge's external RAM contents for
// persistence, or nil if the cartridge has no battery-backed RAM.
func (s *System) ExportBatteryRAM() []byte {
	bb, ok := s.Bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil
	}
	return bb.SaveRAM()
}

// ImportBatteryRAM restores previously exported external RAM into the
// current cartridge; a no-op if the cartridge has no battery-backed
// RAM.
func (s *System) ImportBatteryRAM(data []byte) {
	bb, ok := s.Bus.Cart().(cart.BatteryBacked)
	if !ok {
		return
	}
	bb.LoadRAM(data)
}

// systemState is the gob-encoded envelope for a full save state:
// CPU registers plus opaque Bus (which itself embeds PPU and
// Cartridge) snapshots.
type systemState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	BusSnapshot            []byte
	Cycles                 int
}

// SaveState snapshots CPU registers and the entire Bus (PPU,
// Cartridge mapper state and RAM included) via encoding/gob, the same
// mechanism Bus.SaveState already uses internally.
func (s *System) SaveState() ([]byte, error) {
	st := systemState{
		A: s.CPU.A, F: s.CPU.F,
		B: s.CPU.B, C: s.CPU.C,
		D: s.CPU.D, E: s.CPU.E,
		H: s.CPU.H, L: s.CPU.L,
		SP: s.CPU.SP, PC: s.CPU.PC,
		IME:         s.CPU.IME,
		BusSnapshot: s.Bus.SaveState(),
		Cycles:      s.cycles,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("system: encode save state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a snapshot produced by SaveState.
func (s *System) LoadState(data []byte) error {
	var st systemState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("system: decode save state: %w", err)
	}
	s.CPU.A, s.CPU.F = st.A, st.F
	s.CPU.B, s.CPU.C = st.B, st.C
	s.CPU.D, s.CPU.E = st.D, st.E
	s.CPU.H, s.CPU.L = st.H, st.L
	s.CPU.SP, s.CPU.PC = st.SP, st.PC
	s.CPU.IME = st.IME
	s.Bus.LoadState(st.BusSnapshot)
	s.cycles = st.Cycles
	return nil
}
