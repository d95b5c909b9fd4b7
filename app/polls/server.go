package polls

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/rankroom/rankroom/app/polls/controller"
	"github.com/rankroom/rankroom/app/polls/types"
	"github.com/rankroom/rankroom/pkg/utils"
)

// NewServer wires the controller and router into the app's HTTP server.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router := ctler.NewRouter()

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":8080")

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
