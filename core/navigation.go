package core

import "log"

// Named routes the client redirects between.
const (
	RouteLogin        = "/login"
	RouteDashboard    = "/dashboard"
	RouteCatalogTypes = "/catalog-types"
	RouteCatalogs     = "/catalogs"
)

// Navigator moves the operator to a named route, optionally replacing history.
type Navigator interface {
	Navigate(route string, replace bool)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string, replace bool)

func (f NavigatorFunc) Navigate(route string, replace bool) { f(route, replace) }

type logNavigator struct{}

func (logNavigator) Navigate(route string, replace bool) {
	log.Printf("[nav] -> %s (replace=%t)", route, replace)
}
