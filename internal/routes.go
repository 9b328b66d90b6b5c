package internal

import (
	"net/http"
	"wakaproof/internal/controllers"
	"wakaproof/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/day", http.HandlerFunc(apiController.GetDay))
	routers.Get("/week", http.HandlerFunc(apiController.GetWeek))
	routers.Get("/month", http.HandlerFunc(apiController.GetMonth))
	routers.Get("/verify", http.HandlerFunc(apiController.Verify))
	routers.Post("/fetch", http.HandlerFunc(apiController.Fetch))
	return routers
}
