package library

import (
	"fmt"

	"vns-engine/vm"
)

// Namespace delle azioni di base
const Namespace = "vn"

var targetInputs = append([]string{"chapter", "label", "global"}, QueryInputs...)

// Install registra le azioni di base: set_global, delete_global, jump, enter, exit
func Install(registry *vm.Registry) {
	registry.Add(vm.NewCheckedFunction(Namespace, "set_global", []string{"name", "value"}, setGlobal))
	registry.Add(vm.NewCheckedFunction(Namespace, "delete_global", []string{"name"}, deleteGlobal))
	registry.Add(vm.NewFunction(Namespace, "jump", targetInputs, jump))
	registry.Add(vm.NewFunction(Namespace, "enter", targetInputs, enter))
	registry.Add(vm.NewFunction(Namespace, "exit", append([]string{"global"}, QueryInputs...), exit))
}

func setGlobal(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	name, ok := args.Text("name")
	if !ok {
		return vm.Result{}, fmt.Errorf("il parametro name deve essere testo, ricevuto %s", args.Get("name").Kind())
	}
	ctx.Globals().Set(name, args.Get("value"))
	return vm.ContinueResult(), nil
}

func deleteGlobal(ctx *vm.Context, args vm.Args) (vm.Result, error) {
	name, ok := args.Text("name")
	if !ok {
		return vm.Result{}, fmt.Errorf("il parametro name deve essere testo, ricevuto %s", args.Get("name").Kind())
	}
	ctx.Globals().Delete(name)
	return vm.ContinueResult(), nil
}

func passes(ctx *vm.Context, args vm.Args) bool {
	return Gate(ctx.Globals(), args.Get("global"), QueryFromArgs(args))
}

func jump(ctx *vm.Context, args vm.Args) vm.Result {
	if !passes(ctx, args) {
		return vm.ContinueResult()
	}
	chapter, _ := args.Text("chapter")
	label, _ := args.Text("label")
	return vm.JumpResult(chapter, label)
}

func enter(ctx *vm.Context, args vm.Args) vm.Result {
	if !passes(ctx, args) {
		return vm.ContinueResult()
	}
	chapter, _ := args.Text("chapter")
	label, _ := args.Text("label")
	return vm.EnterResult(chapter, label)
}

func exit(ctx *vm.Context, args vm.Args) vm.Result {
	if !passes(ctx, args) {
		return vm.ContinueResult()
	}
	return vm.ExitResult()
}
