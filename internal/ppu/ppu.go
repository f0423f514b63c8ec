package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs captures the scroll/window registers and derived window-line
// counter latched for a scanline at the moment its pixel-transfer mode
// begins, matching the "scanline-granular" model of spec.md §4.4: the
// renderer uses one consistent snapshot per line rather than tracking
// mid-line register writes.
type LineRegs struct {
	SCX, SCY, WY, WX, LCDC byte
	WinLine                byte
	WindowVisible          bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and scanline-granular
// mode timing (OAM_SCAN 80 dots, PIXEL_TRANSFER 172 dots, HBLANK 204
// dots, 456 dots/line, 154 lines/frame) per spec.md §4.4.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	windowLine int // -1 until the window is first drawn this frame

	lineRegs [144]LineRegs
	frame    [160 * 144]byte // palette-resolved shades, row-major

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	return &PPU{req: req, windowLine: -1}
}

// vramAdapter exposes PPU's raw VRAM array (no CPU-mode gating) as a
// VRAMReader for the scanline/sprite renderers, which run between CPU
// instructions rather than concurrently with CPU VRAM access.
type vramAdapter struct{ p *PPU }

func (a vramAdapter) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return a.p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.windowLine = -1
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.windowLine = -1
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLine = -1
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if int(p.ly) < 144 {
			p.renderScanline(p.ly)
		}
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 3: // Pixel transfer: latch this line's registers.
		p.captureLineRegs(p.ly)
	}
}

// captureLineRegs snapshots SCX/SCY/WY/WX/LCDC and advances the window
// line counter exactly once for each visible line where the window is
// actually drawn (spec.md §4.4 window composition rules).
func (p *PPU) captureLineRegs(ly byte) {
	if int(ly) >= 144 {
		return
	}
	visible := (p.lcdc&0x20) != 0 && ly >= p.wy && p.wx <= 166
	if visible {
		p.windowLine++
	}
	winLine := byte(0)
	if p.windowLine >= 0 {
		winLine = byte(p.windowLine)
	}
	p.lineRegs[ly] = LineRegs{
		SCX: p.scx, SCY: p.scy, WY: p.wy, WX: p.wx, LCDC: p.lcdc,
		WinLine: winLine, WindowVisible: visible,
	}
}

// LineRegs returns the registers latched for scanline ly (valid after
// that line has entered pixel-transfer mode).
func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= 144 {
		return LineRegs{}
	}
	return p.lineRegs[ly]
}

// renderScanline composes background, window, and sprite layers for
// line ly into the frame buffer, resolving DMG palettes. Called once per
// line at HBlank entry (spec.md §4.4: scanline-granular, not
// pixel-FIFO/dot-accurate).
func (p *PPU) renderScanline(ly byte) {
	lr := p.lineRegs[ly]
	mem := vramAdapter{p}

	var bgci [160]byte
	if lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(mem, mapBase, tileData8000, lr.SCX, lr.SCY, ly)
	}

	if lr.WindowVisible {
		winMapBase := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			winMapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		wxStart := int(lr.WX) - 7
		winCI := RenderWindowScanlineUsingFetcher(mem, winMapBase, tileData8000, wxStart, lr.WinLine)
		for x := wxStart; x < 160; x++ {
			if x < 0 {
				continue
			}
			bgci[x] = winCI[x]
		}
	}

	var shaded [160]byte
	for x := 0; x < 160; x++ {
		shaded[x] = resolvePalette(p.bgp, bgci[x])
	}

	if lr.LCDC&0x02 != 0 {
		tall := lr.LCDC&0x04 != 0
		sprites := scanOAM(p.oam[:], ly, tall)
		colors, palettes := composeSpritesDetailed(mem, sprites, ly, bgci, tall)
		for x := 0; x < 160; x++ {
			if colors[x] == 0 {
				continue
			}
			pal := p.obp0
			if palettes[x] == 1 {
				pal = p.obp1
			}
			shaded[x] = resolvePalette(pal, colors[x])
		}
	}

	copy(p.frame[int(ly)*160:int(ly)*160+160], shaded[:])
}

// resolvePalette maps a 2-bit color index through a DMG palette register
// (BGP/OBP0/OBP1) to produce the shade written into the frame buffer.
func resolvePalette(palette byte, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}

// FrameBuffer returns the current 160x144 buffer of palette-resolved
// shades (0..3), row-major, per spec.md §6.
func (p *PPU) FrameBuffer() []byte { return p.frame[:] }

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

type ppuState struct {
	VRAM       [0x2000]byte
	OAM        [0xA0]byte
	LCDC       byte
	Stat       byte
	SCY, SCX   byte
	LY, LYC    byte
	BGP        byte
	OBP0, OBP1 byte
	WY, WX     byte
	Dot        int
	WindowLine int
	Frame      [160 * 144]byte
}

// SaveState/LoadState serialize PPU memory and registers via gob, the
// same mechanism the Bus uses for WRAM/HRAM (see internal/bus).
func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, Stat: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, Dot: p.dot, WindowLine: p.windowLine, Frame: p.frame,
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s ppuState
	if err := dec.Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.Stat, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx, p.dot, p.windowLine, p.frame = s.WY, s.WX, s.Dot, s.WindowLine, s.Frame
}
