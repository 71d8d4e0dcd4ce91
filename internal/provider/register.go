package provider

import (
	"io"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/reconcile"
)

// Register configures a controller for def and adds it to reg.
func Register[T any, C io.Closer](reg *controller.Registry, def Definition[T, C], connect Connector[C], opts config.Options, execOpts ...reconcile.ExecutorOption) error {
	ctrl := NewController(def, connect, execOpts...)
	if err := ctrl.Configure(opts); err != nil {
		return err
	}

	return controller.Register[T](reg, controller.Registration{
		Type:        def.Type,
		Modes:       def.Modes,
		Description: def.Description,
	}, ctrl)
}
