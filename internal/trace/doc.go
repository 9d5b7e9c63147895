// Package trace follows a URL through its HTTP redirects hop by hop.
//
// Every hop is fetched with redirect following disabled. A 3xx answer with a
// Location header is recorded as a Hop and its target, resolved against the
// current URL, becomes the next request. Any other answer ends the trace as
// the final destination. More than model.MaxHops redirects abort the trace
// with ErrLoopDetected and no partial result.
package trace
