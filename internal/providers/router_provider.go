package providers

import (
	"net/http"
	"slices"
	"strings"
	"wakaproof/internal/structures"
)

// RouterProviderInterface collects the API routes before they are mounted.
// Each route answers one method; anything else gets 405 with an Allow header.
type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
}

type RouterProvider struct {
	routes []structures.Route
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}

// Get registers a read route. HEAD is served by the same handler.
func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(url, handler, http.MethodGet, http.MethodHead)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(url, handler, http.MethodPost)
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

func (rp *RouterProvider) add(url string, handler http.Handler, methods ...string) {
	rp.routes = append(rp.routes, structures.Route{Url: url, Handler: allowMethods(handler, methods...)})
}

func allowMethods(handler http.Handler, methods ...string) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(methods, r.Method) {
			w.Header().Set("Allow", allow)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
