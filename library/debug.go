package library

import (
	"go.uber.org/zap"

	"vns-engine/vm"
)

// InstallDebug registra vn_debug.print, che scrive il messaggio nel logger
func InstallDebug(registry *vm.Registry, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry.Add(vm.NewFunction("vn_debug", "print", []string{"message"}, func(ctx *vm.Context, args vm.Args) vm.Result {
		message := args.Get("message")
		if text, ok := message.AsText(); ok {
			logger.Info(text)
		} else {
			logger.Info("debug", zap.Stringer("value", message))
		}
		return vm.ContinueResult()
	}))
}
