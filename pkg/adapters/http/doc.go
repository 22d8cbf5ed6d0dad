// Package http exposes the session engine over HTTP.
//
// A turn is a POST to /v1/courses/{courseID}/run whose response is an event stream of frames
// (see package stream). The learner is identified by a header set by the fronting gateway;
// this package performs no authentication of its own.
package http
