// Package meal turns backend meal and food records into the values the plate
// view displays: chart slices, macro cards and food activity.
//
// Everything here is a pure function of its input.
package meal
