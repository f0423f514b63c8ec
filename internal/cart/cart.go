package cart

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM to
// be persisted across sessions (spec.md §6 "Persisted state").
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// New builds a Cartridge from a raw ROM image, failing with ErrInvalidROM
// if the image is too small to contain a header (spec.md §6 "ROM file
// format"). The mapper implementation is picked from the decoded header;
// unrecognized mappers fall back to a fixed-bank, no-RAM stub.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	ramSize := h.RAMBanks * 8 * 1024

	switch h.Mapper {
	case MapperROMOnly:
		return NewROMOnly(rom), nil
	case MapperMBC1:
		return NewMBC1(rom, ramSize), nil
	case MapperMBC3:
		return NewMBC3(rom, ramSize), nil
	case MapperMBC5:
		return NewMBC5(rom, ramSize), nil
	default:
		return NewROMOnly(rom), nil
	}
}
