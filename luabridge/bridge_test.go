package luabridge

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vns-engine/compiler"
	"vns-engine/formats"
	_ "vns-engine/formats/vns"
	"vns-engine/library"
	"vns-engine/parser"
	"vns-engine/vm"
)

const script = `
function check_score(args)
	local score = vn.get_global("score")
	if score ~= nil and score > args.limit then
		return vn.jump_to{label = "win"}
	end
	vn.set_global("inventory", {"sword", "key", args.extra})
	return nil
end

function leave()
	return vn.exit()
end

function gated()
	vn.set_global("gate", vn.query("score", {greater_than = 3}))
	vn.set_global("missing_gate", vn.query("nope", {}))
end

shop = {}
function shop.buy(args)
	vn.set_global("bought", args)
	return vn.enter{chapter = "receipt"}
end
`

func newBridge(t *testing.T) *Bridge {
	t.Helper()
	bridge := New(nil)
	require.NoError(t, bridge.LoadString("script.lua", script))
	return bridge
}

// ============================================
// Test: chiamate dirette
// ============================================

func TestCallReturnsResults(t *testing.T) {
	bridge := newBridge(t)
	ctx := vm.NewContext()
	ctx.Globals().Set("score", parser.Number(10))

	result, err := bridge.Call(ctx, "", "check_score", parser.Map(map[string]parser.Value{"limit": parser.Number(5)}))
	require.NoError(t, err)
	assert.Equal(t, vm.JumpResult("", "win"), result)

	result, err = bridge.Call(ctx, "", "leave", parser.None())
	require.NoError(t, err)
	assert.Equal(t, vm.ExitResult(), result)

	result, err = bridge.Call(ctx, "shop", "buy", parser.Map(map[string]parser.Value{"item": parser.Text("potion")}))
	require.NoError(t, err)
	assert.Equal(t, vm.EnterResult("receipt", ""), result)

	bought, ok := ctx.Globals().Get("bought")
	require.True(t, ok)
	assert.True(t, bought.Equal(parser.Map(map[string]parser.Value{"item": parser.Text("potion")})))
}

func TestCallContinueAndConversion(t *testing.T) {
	bridge := newBridge(t)
	ctx := vm.NewContext()

	result, err := bridge.Call(ctx, "", "check_score", parser.Map(map[string]parser.Value{
		"limit": parser.Number(5),
		"extra": parser.Boolean(true),
	}))
	require.NoError(t, err)
	assert.Equal(t, vm.Continue, result.Kind)

	inventory, ok := ctx.Globals().Get("inventory")
	require.True(t, ok)
	assert.True(t, inventory.Equal(parser.Array(parser.Text("sword"), parser.Text("key"), parser.Boolean(true))))
}

func TestCallErrors(t *testing.T) {
	bridge := newBridge(t)
	ctx := vm.NewContext()

	_, err := bridge.Call(ctx, "", "missing", parser.None())
	assert.Error(t, err)

	_, err = bridge.Call(ctx, "nomodule", "buy", parser.None())
	assert.Error(t, err)

	// args.limit è nil: il confronto fallisce dentro Lua
	ctx.Globals().Set("score", parser.Number(1))
	_, err = bridge.Call(ctx, "", "check_score", parser.Map(nil))
	assert.Error(t, err)

	assert.Error(t, bridge.LoadString("broken.lua", "function ("))
}

func TestValueRoundTrip(t *testing.T) {
	bridge := New(nil)
	values := []parser.Value{
		parser.None(),
		parser.Boolean(false),
		parser.Number(2.5),
		parser.Text("ciao"),
		parser.Array(parser.Number(1), parser.Array(parser.Text("x"))),
		parser.Map(map[string]parser.Value{"a": parser.Number(1), "b": parser.Map(map[string]parser.Value{"c": parser.Text("d")})}),
		parser.Array(),
	}

	for _, value := range values {
		pushValue(bridge.state, value)
		converted := toValue(bridge.state, -1)
		bridge.state.Pop(1)
		assert.True(t, value.Equal(converted), "%s → %s", value, converted)
	}

	pushValue(bridge.state, parser.Color(0xff))
	converted := toValue(bridge.state, -1)
	bridge.state.Pop(1)
	assert.True(t, converted.Equal(parser.Number(255)))
}

func TestQueryFromLua(t *testing.T) {
	bridge := newBridge(t)
	ctx := vm.NewContext()
	ctx.Globals().Set("score", parser.Number(5))

	_, err := bridge.Call(ctx, "", "gated", parser.None())
	require.NoError(t, err)

	gate, _ := ctx.Globals().Get("gate")
	assert.True(t, gate.Equal(parser.Boolean(true)))
	missing, _ := ctx.Globals().Get("missing_gate")
	assert.True(t, missing.Equal(parser.Boolean(false)))
}

// ============================================
// Test: integrazione con la VM
// ============================================

func TestLuaActionInStory(t *testing.T) {
	fsys := fstest.MapFS{
		"main.vns": {Data: []byte(`
import "logic.lua"
chapter start {
	set_global(name: "score", value: 8)
	lua(name: "check_score", arguments: { limit: 3 })
	set_global(name: "outcome", value: lose)
	exit()
	label win
	set_global(name: "outcome", value: win)
}`)},
		"logic.lua": {Data: []byte(script)},
	}

	pkg, err := compiler.Load("main.vns", formats.NewDefaultProvider(fsys), nil)
	require.NoError(t, err)

	bridge := New(nil)
	require.NoError(t, bridge.LoadPackage(pkg))

	registry := vm.NewRegistry()
	library.Install(registry)
	bridge.Install(registry)

	machine := vm.New(registry, nil)
	machine.AddStory(pkg.Compile())
	require.True(t, machine.Enter("start", ""))
	_, err = machine.Run(50)
	require.NoError(t, err)

	outcome, ok := machine.Globals().Get("outcome")
	require.True(t, ok)
	assert.True(t, outcome.Equal(parser.Text("win")))
	t.Log("✅ Azione Lua eseguita dalla VM")
}
