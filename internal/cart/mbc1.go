package cart

// MBC1 implements full MBC1 ROM/RAM banking per spec.md §4.2: a 5-bit
// ROM-bank-low register (0 remapped to 1), a 2-bit upper register that is
// either ROM-bank-high (mode 0) or RAM-bank (mode 1), a mode-select bit,
// and a RAM-enable latch keyed on writing 0x0A to 0x0000-0x1FFF.
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5       byte
	ramBankOrRomHigh2 byte
	ramEnabled        bool
	modeSelect        byte
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, romBankLow5: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) ramOffset(addr uint16) int {
	ramBank := 0
	if m.modeSelect == 1 {
		ramBank = int(m.ramBankOrRomHigh2 & 0x03)
	}
	return ramBank*0x2000 + int(addr-0xA000)
}

func (m *MBC1) effectiveROMBank() byte {
	if m.modeSelect == 1 {
		return m.romBankLow5
	}
	high := m.ramBankOrRomHigh2 & 0x03
	return m.romBankLow5 | (high << 5)
}

// SaveState snapshots the banking registers and external RAM for the
// full-state save slots described in SPEC_FULL.md §4 ("Save-state
// round-trip"). ROM bytes are not re-serialized; the caller keeps the
// loaded image and reconstructs the cartridge with the same ROM bytes
// before calling LoadState.
func (m *MBC1) SaveState() []byte {
	out := make([]byte, 4+len(m.ram))
	out[0] = m.romBankLow5
	out[1] = m.ramBankOrRomHigh2
	out[2] = m.modeSelect
	if m.ramEnabled {
		out[3] = 1
	}
	copy(out[4:], m.ram)
	return out
}

func (m *MBC1) LoadState(data []byte) {
	if len(data) < 4 {
		return
	}
	m.romBankLow5 = data[0]
	m.ramBankOrRomHigh2 = data[1]
	m.modeSelect = data[2]
	m.ramEnabled = data[3] != 0
	copy(m.ram, data[4:])
}

func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
