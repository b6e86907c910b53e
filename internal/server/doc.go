// Package server exposes the plate screen to displays on the kiosk's network.
//
// Routes:
//
//	GET /health                 liveness, plain "OK"
//	GET /api/plate              current app.View as JSON
//	GET /api/images?src=<url>   photo of a slice on the current plate, through the image cache;
//	                            400 without src, 404 for any other url, 502 when the fetch fails
//	GET /ws                     websocket view feed
//
// Every websocket message is a JSON Message. The server sends
// {"type":"view","data":{...}} on connect and whenever the view changes.
// Displays send {"type":"visibility","visible":false} when they hide the
// plate screen and {"type":"refetch"} to force a poll. Polling pauses only
// while displays are connected and none of them is visible.
package server
