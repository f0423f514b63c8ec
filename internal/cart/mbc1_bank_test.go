package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Exercises the MBC1 bank-arithmetic scenario from spec.md §8: low5=0x01
// plus high2=0x01 selects combined bank 0x21, and MBC1's 0->1 remap only
// applies to the 5-bit low register, not the combined bank number.
func TestMBC1_EffectiveBankArithmetic(t *testing.T) {
	rom := make([]byte, 2*1024*1024)
	for bank := 0; bank < 128; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC1(rom, 0)

	m.Write(0x2000, 0x01) // low5 = 1
	m.Write(0x4000, 0x01) // high2 = 1 -> combined bank 0x21 = 33
	require.Equal(t, byte(0x21), m.effectiveROMBank())
	require.Equal(t, byte(33), m.Read(0x4000))

	// Low5 0x00 remaps to 0x01 even when high2 is nonzero, giving bank 0x21
	// again rather than 0x20.
	m.Write(0x2000, 0x00)
	require.Equal(t, byte(0x21), m.effectiveROMBank())
}

func TestMBC1_SaveLoadStateRoundTrip(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC1(rom, 32*1024)
	m.Write(0x0000, 0x0A)
	m.Write(0x2000, 0x05)
	m.Write(0x6000, 0x01)
	m.Write(0x4000, 0x02)
	m.Write(0xA000, 0x55)

	snap := m.SaveState()

	n := NewMBC1(rom, 32*1024)
	n.LoadState(snap)

	require.Equal(t, m.romBankLow5, n.romBankLow5)
	require.Equal(t, m.ramBankOrRomHigh2, n.ramBankOrRomHigh2)
	require.Equal(t, m.modeSelect, n.modeSelect)
	require.Equal(t, m.ramEnabled, n.ramEnabled)
	require.Equal(t, byte(0x55), n.Read(0xA000))
}
