// Package pagination walks the hh.ru vacancy search page by page.
//
// hh.ru pages are zero-based and report the total page count in the response
// body ("pages"). The pager requests pages strictly in order and stops at the
// first of:
//   - the configured page count is reached
//   - a page returns fewer items than requested (or none)
//   - the API reports no further pages
//
// Example usage:
//
//	pager := pagination.NewPager(hhClient)
//	result, err := pager.Collect(ctx, query)
//
// A failed page ends the walk. Summaries gathered from earlier pages are still
// returned alongside a *PageError so the caller can decide whether partial data
// is good enough.
package pagination
