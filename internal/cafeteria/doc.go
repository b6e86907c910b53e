// Package cafeteria is the HTTP client for the Smart Eating backend.
//
// # Endpoints
//
//   - GET  /auth/meals/current     the meal bound to the active plate (404: none)
//   - POST /auth/meals/initialize  bind a scanned plate to a new meal
//   - GET  /auth/meals             paginated meal history
//   - GET  /auth/foods/menu        today's menu
//   - GET  /foods                  paginated food catalog
//
// Food photos are fetched with FetchImage, which accepts absolute URLs or
// paths relative to the API root.
//
// # Request Context
//
// Every request carries the credentials held by a Session (the User-Id
// header, plus a bearer token when one is set). When the backend answers
// 401 and the Session has a RefreshFunc, the client refreshes once and
// retries. Concurrent callers hitting 401 together share one refresh.
//
// # Errors
//
// Failures are returned as *Error with a Kind. Callers branch on the kind
// rather than on message text:
//
//	meal, err := client.FetchCurrentMeal(ctx)
//	switch {
//	case err == nil:
//		// use meal
//	case cafeteria.IsNotFound(err):
//		// no active meal
//	case cafeteria.IsCancelled(err):
//		// caller went away
//	default:
//		// transient; try again on the next tick
//	}
package cafeteria
