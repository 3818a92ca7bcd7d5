package viewer

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/meshlod/pkg/simplify"
)

var keyBindings = map[sdl.Scancode]Action{
	sdl.SCANCODE_ESCAPE:   {Kind: ActionQuit},
	sdl.SCANCODE_EQUALS:   {Kind: ActionMoreInstances},
	sdl.SCANCODE_KP_PLUS:  {Kind: ActionMoreInstances},
	sdl.SCANCODE_MINUS:    {Kind: ActionFewerInstances},
	sdl.SCANCODE_KP_MINUS: {Kind: ActionFewerInstances},
	sdl.SCANCODE_H:        {Kind: ActionToggleHysteresis},
	sdl.SCANCODE_1:        {Kind: ActionSetPolicy, Value: int(simplify.Mean)},
	sdl.SCANCODE_2:        {Kind: ActionSetPolicy, Value: int(simplify.Median)},
	sdl.SCANCODE_3:        {Kind: ActionSetPolicy, Value: int(simplify.Voxelize)},
	sdl.SCANCODE_4:        {Kind: ActionSetPolicy, Value: int(simplify.ErrorQuadric)},
	sdl.SCANCODE_5:        {Kind: ActionSetPolicy, Value: int(simplify.ShapePreserving)},
	sdl.SCANCODE_0:        {Kind: ActionAutoLevels},
	sdl.SCANCODE_F1:       {Kind: ActionForceLevel, Value: 0},
	sdl.SCANCODE_F2:       {Kind: ActionForceLevel, Value: 1},
	sdl.SCANCODE_F3:       {Kind: ActionForceLevel, Value: 2},
	sdl.SCANCODE_F4:       {Kind: ActionForceLevel, Value: 3},
	sdl.SCANCODE_F5:       {Kind: ActionForceLevel, Value: 4},
	sdl.SCANCODE_F6:       {Kind: ActionForceLevel, Value: 5},
	sdl.SCANCODE_PAGEUP:   {Kind: ActionBudgetUp},
	sdl.SCANCODE_PAGEDOWN: {Kind: ActionBudgetDown},
	sdl.SCANCODE_TAB:      {Kind: ActionToggleWireframe},
	sdl.SCANCODE_C:        {Kind: ActionToggleTint},
	sdl.SCANCODE_O:        {Kind: ActionToggleOrbit},
	sdl.SCANCODE_R:        {Kind: ActionResetCamera},
}

// Orbit keys: arrows and WASD.
var (
	yawLeft   = []sdl.Scancode{sdl.SCANCODE_LEFT, sdl.SCANCODE_A}
	yawRight  = []sdl.Scancode{sdl.SCANCODE_RIGHT, sdl.SCANCODE_D}
	pitchUp   = []sdl.Scancode{sdl.SCANCODE_UP, sdl.SCANCODE_W}
	pitchDown = []sdl.Scancode{sdl.SCANCODE_DOWN, sdl.SCANCODE_S}
)
