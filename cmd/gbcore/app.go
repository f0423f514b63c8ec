package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/mochadwi/gbcore/internal/system"
)

// dmgShades maps the core's 2-bit indexed frame buffer to the
// classic green-tinted four-shade DMG palette, lightest to darkest.
var dmgShades = [4]color.RGBA{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// keymap binds the host keyboard to the eight joypad buttons; the
// window/event loop itself is explicitly out of the core's scope, so
// this is the entire surface where ebiten touches System.
var keymap = [...]struct {
	key ebiten.Key
	btn system.Button
}{
	{ebiten.KeyArrowRight, system.ButtonRight},
	{ebiten.KeyArrowLeft, system.ButtonLeft},
	{ebiten.KeyArrowUp, system.ButtonUp},
	{ebiten.KeyArrowDown, system.ButtonDown},
	{ebiten.KeyZ, system.ButtonA},
	{ebiten.KeyX, system.ButtonB},
	{ebiten.KeyBackspace, system.ButtonSelect},
	{ebiten.KeyEnter, system.ButtonStart},
}

// App is a minimal ebiten front-end: it does nothing beyond pumping
// input into the System and blitting its frame buffer to the screen.
// Save-state slots, menus, ROM pickers and audio belong to a richer
// host shell and are not part of this core.
type App struct {
	sys   *system.System
	title string
	scale int
	tex   *ebiten.Image
}

func NewApp(sys *system.System, title string, scale int) *App {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(160*scale, 144*scale)
	return &App{sys: sys, title: title, scale: scale, tex: ebiten.NewImage(160, 144)}
}

func (a *App) Update() error {
	for _, k := range keymap {
		a.sys.SetButton(k.btn, ebiten.IsKeyPressed(k.key))
	}
	a.sys.RunFrame()
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	fb := a.sys.FrameBuffer()
	pix := make([]byte, 160*144*4)
	for i, shade := range fb {
		c := dmgShades[shade&0x03]
		pix[i*4+0], pix[i*4+1], pix[i*4+2], pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	a.tex.WritePixels(pix)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.scale), float64(a.scale))
	screen.DrawImage(a.tex, op)
	ebitenutil.DebugPrint(screen, a.title)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160 * a.scale, 144 * a.scale
}

func (a *App) Run() error { return ebiten.RunGame(a) }
