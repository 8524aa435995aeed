package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vns-engine/parser"
)

// testRegistry registra funzioni che restituiscono il Result indicato dai parametri
func testRegistry(calls *[]string) *Registry {
	registry := NewRegistry()
	record := func(name string) {
		if calls != nil {
			*calls = append(*calls, name)
		}
	}
	registry.Add(NewFunction("test", "say", []string{"what"}, func(ctx *Context, args Args) Result {
		what, _ := args.Text("what")
		record(what)
		return ContinueResult()
	}))
	registry.Add(NewFunction("test", "jump", []string{"chapter", "label"}, func(ctx *Context, args Args) Result {
		chapter, _ := args.Text("chapter")
		label, _ := args.Text("label")
		record("jump")
		return JumpResult(chapter, label)
	}))
	registry.Add(NewFunction("test", "enter", []string{"chapter", "label"}, func(ctx *Context, args Args) Result {
		chapter, _ := args.Text("chapter")
		label, _ := args.Text("label")
		record("enter")
		return EnterResult(chapter, label)
	}))
	registry.Add(NewFunction("test", "exit", nil, func(ctx *Context, args Args) Result {
		record("exit")
		return ExitResult()
	}))
	return registry
}

func loadVm(t *testing.T, source string, calls *[]string) *Vm {
	t.Helper()
	doc, err := parser.Parse("test.vns", source)
	require.NoError(t, err)
	machine := New(testRegistry(calls), nil)
	machine.AddStory(doc.Story)
	return machine
}

// ============================================
// Test: enter e label
// ============================================

func TestEnterAtLabelSkipsAction(t *testing.T) {
	machine := loadVm(t, `chapter main { label intro say(what: "hi") label end }`, nil)

	require.True(t, machine.Enter("main", "end"))
	frame, ok := machine.Current()
	require.True(t, ok)
	assert.Equal(t, Frame{Chapter: "main", Position: 2}, frame)

	require.True(t, machine.Enter("main", "missing"))
	frame, _ = machine.Current()
	assert.Equal(t, 0, frame.Position)
	assert.Len(t, machine.Frames(), 2)
}

func TestEnterUnknownChapter(t *testing.T) {
	machine := loadVm(t, `chapter main { }`, nil)
	assert.False(t, machine.Enter("nowhere", ""))
	assert.False(t, machine.IsRunning())
}

func TestLinearRun(t *testing.T) {
	var calls []string
	machine := loadVm(t, `chapter main { label a say(what: "uno") label b say(what: "due") }`, &calls)

	require.True(t, machine.Enter("main", ""))
	steps, err := machine.Run(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"uno", "due"}, calls)
	assert.Equal(t, 5, steps)
	assert.False(t, machine.IsRunning())
	t.Logf("✅ Esecuzione lineare in %d passi", steps)
}

// ============================================
// Test: jump / enter / exit
// ============================================

func TestJumpWithinAndAcrossChapters(t *testing.T) {
	var calls []string
	machine := loadVm(t, `
chapter main {
	jump(label: skip)
	say(what: "saltato")
	label skip
	jump(chapter: other, label: there)
}
chapter other {
	say(what: "mai")
	label there
	say(what: "arrivato")
}`, &calls)

	require.True(t, machine.Enter("main", ""))
	_, err := machine.Run(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"jump", "jump", "arrivato"}, calls)
}

func TestJumpToMissingChapterAdvances(t *testing.T) {
	var calls []string
	machine := loadVm(t, `chapter main { jump(chapter: nowhere) say(what: "dopo") }`, &calls)

	require.True(t, machine.Enter("main", ""))
	require.NoError(t, machine.Step())
	frame, _ := machine.Current()
	assert.Equal(t, Frame{Chapter: "main", Position: 1}, frame)
}

func TestEnterThenExitResumesCaller(t *testing.T) {
	var calls []string
	machine := loadVm(t, `
chapter main {
	enter(chapter: sub)
	say(what: "ritorno")
}
chapter sub {
	say(what: "dentro")
	exit()
	say(what: "mai")
}`, &calls)

	require.True(t, machine.Enter("main", ""))
	require.NoError(t, machine.Step())
	require.Len(t, machine.Frames(), 2)
	assert.Equal(t, Frame{Chapter: "main", Position: 0}, machine.Frames()[0])

	_, err := machine.Run(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"enter", "dentro", "exit", "ritorno"}, calls)
}

func TestExhaustedCalleeResumesCaller(t *testing.T) {
	var calls []string
	machine := loadVm(t, `
chapter main {
	enter(chapter: sub)
	say(what: "ritorno")
}
chapter sub {
	say(what: "dentro")
}`, &calls)

	require.True(t, machine.Enter("main", ""))
	_, err := machine.Run(20)
	require.NoError(t, err)
	assert.Equal(t, []string{"enter", "dentro", "ritorno"}, calls)
	assert.False(t, machine.IsRunning())
}

func TestEnterMissingChapterAdvances(t *testing.T) {
	machine := loadVm(t, `chapter main { enter(chapter: nowhere) }`, nil)
	require.True(t, machine.Enter("main", ""))
	require.NoError(t, machine.Step())
	assert.Equal(t, []Frame{{Chapter: "main", Position: 1}}, machine.Frames())
}

func TestReentrantEnter(t *testing.T) {
	machine := loadVm(t, `chapter main { say(what: "x") }`, nil)

	require.True(t, machine.Enter("main", ""))
	require.True(t, machine.Enter("main", ""))
	assert.Len(t, machine.Frames(), 2)

	// say, fine del frame interno (avanza il chiamante), fine del frame esterno
	for i := 0; i < 3; i++ {
		assert.True(t, machine.IsRunning())
		require.NoError(t, machine.Step())
	}
	assert.False(t, machine.IsRunning())
}

func TestRemovedChapterPopsFrame(t *testing.T) {
	machine := loadVm(t, `chapter main { say(what: "x") } chapter other { }`, nil)

	require.True(t, machine.Enter("main", ""))
	_, removed := machine.RemoveChapter("main")
	require.True(t, removed)

	require.NoError(t, machine.Step())
	assert.False(t, machine.IsRunning())

	machine.RemoveChapters(func(name string, _ *parser.Chapter) bool { return name == "other" })
	assert.Empty(t, machine.ChapterNames())
}

// ============================================
// Test: errori di dispatch
// ============================================

func TestStepUnknownFunctionIsFatal(t *testing.T) {
	machine := loadVm(t, `chapter main { missing.fn(a: 1) }`, nil)
	require.True(t, machine.Enter("main", ""))

	err := machine.Step()
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "missing", derr.Namespace)
	assert.Equal(t, "fn", derr.Name)
	assert.Contains(t, err.Error(), "missing.fn")

	assert.Equal(t, []Frame{{Chapter: "main", Position: 0}}, machine.Frames())
}

func TestSetRegistryKeepsFrames(t *testing.T) {
	machine := loadVm(t, `chapter main { say(what: "a") extra.fn() }`, nil)
	require.True(t, machine.Enter("main", ""))
	require.NoError(t, machine.Step())

	var called bool
	registry := testRegistry(nil)
	registry.Add(NewFunction("extra", "fn", nil, func(ctx *Context, args Args) Result {
		called = true
		return ContinueResult()
	}))
	machine.SetRegistry(registry)

	assert.Equal(t, []Frame{{Chapter: "main", Position: 1}}, machine.Frames())
	require.NoError(t, machine.Step())
	assert.True(t, called)
}

func TestSnapshotRestore(t *testing.T) {
	machine := loadVm(t, `chapter main { say(what: "a") say(what: "b") }`, nil)
	require.True(t, machine.Enter("main", ""))
	require.NoError(t, machine.Step())
	machine.Globals().Set("score", parser.Number(7))

	state := machine.Snapshot()

	other := loadVm(t, `chapter main { say(what: "a") say(what: "b") }`, nil)
	other.Restore(state)

	assert.Equal(t, machine.Frames(), other.Frames())
	score, ok := other.Globals().Get("score")
	require.True(t, ok)
	assert.True(t, score.Equal(parser.Number(7)))

	machine.Globals().Set("score", parser.Number(8))
	score, _ = other.Globals().Get("score")
	assert.True(t, score.Equal(parser.Number(7)))
}

func TestObserverSeesActions(t *testing.T) {
	machine := loadVm(t, `chapter main { label l say(what: "a") }`, nil)
	var events []StepEvent
	machine.SetObserver(func(event StepEvent) { events = append(events, event) })

	require.True(t, machine.Enter("main", ""))
	_, err := machine.Run(0)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, Frame{Chapter: "main", Position: 1}, events[0].Frame)
	assert.Equal(t, Continue, events[0].Result.Kind)
}

func TestRunStopsAtLimit(t *testing.T) {
	machine := loadVm(t, `chapter main { label loop jump(label: loop) }`, nil)
	require.True(t, machine.Enter("main", ""))

	steps, err := machine.Run(10)
	require.NoError(t, err)
	assert.Equal(t, 10, steps)
	assert.True(t, machine.IsRunning())
}
